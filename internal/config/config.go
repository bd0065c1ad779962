package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
)

// ストレージ種別
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// SSMParameterGetter Parameter Storeからパラメータを取得するクライアント
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Config アプリケーション設定構造体
type Config struct {
	// Google Calendar設定
	GoogleCredentials string
	CalendarIDs       []string

	// KPI集計設定
	CompanyCalendarDomain   string
	IncludeCompanyCalendars bool
	LookbackDays            int
	LookaheadDays           int
	RetentionDays           int

	// スナップショット保存先
	StorageType string
	SQLitePath  string
	DatabaseURL string

	// HTTPサーバー設定
	HTTPAddr string

	// LINE API設定（任意）
	LineChannelAccessToken string
	LineUserID             string

	// その他設定
	LogLevel string
	Timezone string

	// AWS関連（本番環境でのみ使用）
	ssmClient SSMParameterGetter
}

// Load 環境に応じて設定を読み込み
func Load() (*Config, error) {
	// AWS Lambda環境かどうか判定
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return loadAWSConfig()
	}
	return loadLocalConfig()
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig() (*Config, error) {
	// .envファイルを読み込み（存在する場合のみ）
	if err := godotenv.Load(); err != nil {
		// .envファイルが存在しない場合はエラーにしない
		fmt.Printf("Warning: .envファイルが見つかりません: %v\n", err)
	}

	cfg := loadCommon()
	cfg.GoogleCredentials = getEnvOrDefault("GOOGLE_CREDENTIALS", "")
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "")
	cfg.LineChannelAccessToken = getEnvOrDefault("LINE_CHANNEL_ACCESS_TOKEN", "")
	cfg.LineUserID = getEnvOrDefault("LINE_USER_ID", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig() (*Config, error) {
	// AWS設定を初期化
	awsConfig, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	cfg := loadCommon()
	cfg.ssmClient = ssm.NewFromConfig(awsConfig)

	// Parameter Storeから機密情報を取得
	if err := cfg.loadFromParameterStore(); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCommon 機密情報以外の設定を環境変数から読み込み
func loadCommon() *Config {
	return &Config{
		CalendarIDs:             splitList(getEnvOrDefault("CALENDAR_IDS", "")),
		CompanyCalendarDomain:   getEnvOrDefault("COMPANY_CALENDAR_DOMAIN", "@group.calendar.google.com"),
		IncludeCompanyCalendars: getBoolEnv("INCLUDE_COMPANY_CALENDARS", false),
		LookbackDays:            getIntEnv("KPI_LOOKBACK_DAYS", 30),
		LookaheadDays:           getIntEnv("KPI_LOOKAHEAD_DAYS", 30),
		RetentionDays:           getIntEnv("SNAPSHOT_RETENTION_DAYS", 90),
		StorageType:             strings.ToLower(getEnvOrDefault("STORAGE_TYPE", StorageSQLite)),
		SQLitePath:              getEnvOrDefault("SQLITE_PATH", "./data/kpi.db"),
		HTTPAddr:                getEnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		Timezone:                getEnvOrDefault("TIMEZONE", "Asia/Tokyo"),
	}
}

// validate 必須設定項目の確認
func (c *Config) validate() error {
	if c.GoogleCredentials == "" {
		return fmt.Errorf("GOOGLE_CREDENTIALS環境変数が設定されていません")
	}

	switch c.StorageType {
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH環境変数が設定されていません")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL環境変数が設定されていません")
		}
	default:
		return fmt.Errorf("STORAGE_TYPEの値が不正です: %s", c.StorageType)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONEの値が不正です: %s", c.Timezone)
	}

	if c.LookbackDays < 0 || c.LookaheadDays < 0 || c.RetentionDays <= 0 {
		return fmt.Errorf("集計期間または保持日数の設定が不正です")
	}
	return nil
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
func (c *Config) loadFromParameterStore() error {
	ctx := context.TODO()

	// Google認証情報を取得
	googleCredsParam := getEnvOrDefault("SSM_GOOGLE_CREDS_PARAM", "/calendar-kpi-aggregator/google-creds")
	googleCreds, err := c.getParameter(ctx, googleCredsParam, true)
	if err != nil {
		return fmt.Errorf("Google認証情報の取得に失敗しました: %w", err)
	}
	c.GoogleCredentials = googleCreds

	// DB接続文字列を取得（PostgreSQL利用時のみ）
	if c.StorageType == StoragePostgres {
		dsnParam := getEnvOrDefault("SSM_DATABASE_URL_PARAM", "/calendar-kpi-aggregator/database-url")
		dsn, err := c.getParameter(ctx, dsnParam, true)
		if err != nil {
			return fmt.Errorf("DB接続文字列の取得に失敗しました: %w", err)
		}
		c.DatabaseURL = dsn
	}

	// LINE通知は任意。パラメータ名が設定されている場合のみ取得
	if lineTokenParam := getEnvOrDefault("SSM_LINE_TOKEN_PARAM", ""); lineTokenParam != "" {
		lineToken, err := c.getParameter(ctx, lineTokenParam, true)
		if err != nil {
			return fmt.Errorf("LINE Channel Access Tokenの取得に失敗しました: %w", err)
		}
		c.LineChannelAccessToken = lineToken
	}
	if lineUserParam := getEnvOrDefault("SSM_LINE_USER_ID_PARAM", ""); lineUserParam != "" {
		lineUser, err := c.getParameter(ctx, lineUserParam, true)
		if err != nil {
			return fmt.Errorf("LINE User IDの取得に失敗しました: %w", err)
		}
		c.LineUserID = lineUser
	}

	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func (c *Config) getParameter(ctx context.Context, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := c.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("パラメータ %s が空の値です", paramName)
	}

	return *result.Parameter.Value, nil
}

// GetGoogleCredentialsJSON Google認証情報をJSONとして解析
func (c *Config) GetGoogleCredentialsJSON() (map[string]interface{}, error) {
	var credentials map[string]interface{}
	if err := json.Unmarshal([]byte(c.GoogleCredentials), &credentials); err != nil {
		return nil, fmt.Errorf("Google認証情報のJSON解析に失敗しました: %w", err)
	}
	return credentials, nil
}

// Location 設定されたタイムゾーンを取得
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %w", err)
	}
	return loc, nil
}

// LINEEnabled LINE通知の設定が揃っているか
func (c *Config) LINEEnabled() bool {
	return c.LineChannelAccessToken != "" && c.LineUserID != ""
}

// getEnvOrDefault 環境変数を取得し、存在しない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBoolEnv(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// splitList カンマ区切りの値を分割（空要素は除外）
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
