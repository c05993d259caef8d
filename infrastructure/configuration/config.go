package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"social-publisher/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	OAuth       OAuth       `json:"oauth"`
	Graph       Graph       `json:"graph"`
	Publish     Publish     `json:"publish"`
	Storage     Storage     `json:"storage"`
	Jobs        Jobs        `json:"jobs"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
	// TokenStore selects the credential database: "psql" (default) or "mssql".
	TokenStore     string   `json:"tokenStore"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
}

// OAuth holds third-party platform OAuth client credentials
type OAuth struct {
	Facebook  OAuthClient `json:"facebook"`
	Instagram OAuthClient `json:"instagram"`
	Google    OAuthClient `json:"google"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
}

// Graph holds the Meta Graph API endpoints. Primary and secondary hosts serve the
// Instagram client; Facebook Page calls go to FacebookHost only.
type Graph struct {
	Version       string `json:"version"`
	PrimaryHost   string `json:"primaryHost"`
	SecondaryHost string `json:"secondaryHost"`
	FacebookHost  string `json:"facebookHost"`
}

// Publish holds timing knobs in milliseconds; see PublishSettings.
type Publish struct {
	RetryDelaysMs       []int `json:"retryDelaysMs"`
	MaxRetries          *int  `json:"maxRetries"`
	PreflightTimeoutMs  int   `json:"preflightTimeoutMs"`
	MediaFetchTimeoutMs int   `json:"mediaFetchTimeoutMs"`
	PollingIntervalMs   int   `json:"pollingIntervalMs"`
	PollingBudgetMs     int   `json:"pollingBudgetMs"`
	JPEGQuality         int   `json:"jpegQuality"`
	MaxImageWidth       int   `json:"maxImageWidth"`
	RefreshHorizonHours int   `json:"refreshHorizonHours"`
	GraceWindowHours    int   `json:"graceWindowHours"`
}

type Storage struct {
	// Driver is "gcs" or "local".
	Driver        string `json:"driver"`
	Bucket        string `json:"bucket"`
	PublicBaseURL string `json:"publicBaseURL"`
	LocalDir      string `json:"localDir"`
}

type Jobs struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds"`
	BatchSize       int  `json:"batchSize"`
	Concurrency     int  `json:"concurrency"`
}

var C Config

func init() {
	LoadEnvFromFile("config.env", ".env")
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initOAuth(&C)
	initGraph(&C)
	initStorage(&C)
	initJobs(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	C.Database.Psql.Name = getConfigValue(C.Database.Psql.Name, "DB_NAME", "")
	C.Database.Psql.Host = getConfigValue(C.Database.Psql.Host, "DB_HOST", "")
	C.Database.Psql.User = getConfigValue(C.Database.Psql.User, "DB_USER", "")
	C.Database.Psql.Password = getConfigValue(C.Database.Psql.Password, "DB_PASSWORD", "")
	C.Database.Psql.Port = getConfigValue(C.Database.Psql.Port, "DB_PORT", "5432")

	// Optional MSSQL config via environment variables (for Azure SQL in production)
	C.Database.Mssql.Name = getConfigValue(C.Database.Mssql.Name, "MSSQL_DB_NAME", "")
	C.Database.Mssql.Host = getConfigValue(C.Database.Mssql.Host, "MSSQL_HOST", "localhost")
	C.Database.Mssql.Port = getConfigValue(C.Database.Mssql.Port, "MSSQL_PORT", "1433")
	C.Database.Mssql.User = getConfigValue(C.Database.Mssql.User, "MSSQL_USER", "sa")
	C.Database.Mssql.Password = getConfigValue(C.Database.Mssql.Password, "MSSQL_PASSWORD", "")

	C.Database.Mongo.Host = getConfigValue(C.Database.Mongo.Host, "MONGO_HOST", "")
	C.Database.Mongo.Port = getConfigValue(C.Database.Mongo.Port, "MONGO_PORT", "27017")
	C.Database.Mongo.Name = getConfigValue(C.Database.Mongo.Name, "MONGO_DB_NAME", "social_publisher")

	logger.GetLogger().WithField("host", C.Database.Psql.Host).WithField("mssql_host", C.Database.Mssql.Host).Info("Database configuration")
}

func initApp(C *Config) {
	// Prefer SECRET_KEY from environment for JWT verification; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	C.App.TLSCertFile = getConfigValue(C.App.TLSCertFile, "TLS_CERT_FILE", "")
	C.App.TLSKeyFile = getConfigValue(C.App.TLSKeyFile, "TLS_KEY_FILE", "")
	C.App.TokenStore = getConfigValue(C.App.TokenStore, "TOKEN_STORE", "psql")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		C.App.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				C.App.AllowedOrigins = append(C.App.AllowedOrigins, o)
			}
		}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initOAuth(C *Config) {
	C.OAuth.Facebook.ClientID = getConfigValue(C.OAuth.Facebook.ClientID, "FACEBOOK_APP_ID", "")
	C.OAuth.Facebook.ClientSecret = getConfigValue(C.OAuth.Facebook.ClientSecret, "FACEBOOK_APP_SECRET", "")
	C.OAuth.Instagram.ClientID = getConfigValue(C.OAuth.Instagram.ClientID, "INSTAGRAM_APP_ID", "")
	C.OAuth.Instagram.ClientSecret = getConfigValue(C.OAuth.Instagram.ClientSecret, "INSTAGRAM_APP_SECRET", "")
	C.OAuth.Google.ClientID = getConfigValue(C.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID", "")
	C.OAuth.Google.ClientSecret = getConfigValue(C.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET", "")
}

func initGraph(C *Config) {
	C.Graph.Version = getConfigValue(C.Graph.Version, "GRAPH_API_VERSION", "v21.0")
	C.Graph.PrimaryHost = getConfigValue(C.Graph.PrimaryHost, "GRAPH_PRIMARY_HOST", "https://graph.instagram.com")
	C.Graph.SecondaryHost = getConfigValue(C.Graph.SecondaryHost, "GRAPH_SECONDARY_HOST", "https://graph.facebook.com")
	C.Graph.FacebookHost = getConfigValue(C.Graph.FacebookHost, "FACEBOOK_GRAPH_HOST", "https://graph.facebook.com")
}

func initStorage(C *Config) {
	C.Storage.Driver = getConfigValue(C.Storage.Driver, "STORAGE_DRIVER", "local")
	C.Storage.Bucket = getConfigValue(C.Storage.Bucket, "GCS_BUCKET", "")
	C.Storage.PublicBaseURL = getConfigValue(C.Storage.PublicBaseURL, "MEDIA_PUBLIC_BASE_URL", "")
	C.Storage.LocalDir = getConfigValue(C.Storage.LocalDir, "MEDIA_LOCAL_DIR", "media")
}

func initJobs(C *Config) {
	if v := os.Getenv("PUBLISH_JOBS_ENABLED"); v == "true" || v == "1" {
		C.Jobs.Enabled = true
	}
	if C.Jobs.IntervalSeconds <= 0 {
		C.Jobs.IntervalSeconds = 30
	}
	if C.Jobs.BatchSize <= 0 {
		C.Jobs.BatchSize = 10
	}
	if C.Jobs.Concurrency <= 0 {
		C.Jobs.Concurrency = 4
	}
}
