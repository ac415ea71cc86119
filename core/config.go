package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string
	WorkDir  string

	AppName                   string
	SecretKey                 string
	DefaultFromEmail          mail.Address
	SendgridApiKey            string
	RollbarToken              string
	FrontendBaseURL           string
	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		PageSize           int
		MaxUploadSize      string
		RateLimitRPS       float64
		RateLimitBurst     int
	}

	Database struct {
		Engine        string // postgres | sqlite
		Path          string // sqlite only
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	Redis struct {
		Address  string
		Password string
		DB       int
		Prefix   string
	}

	AWS struct {
		Region   string
		S3Bucket string
		SSMPath  string
	}
}

func (c *Config) IsSQLite() bool { return c.Database.Engine == "sqlite" }

// DatabaseAddress returns the "host:port" of the database server.
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// NewConfig loads the configuration of the current ENV from the environment,
// optionally seeded by config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Janus")
	v.SetDefault("secretKey", "k2#9x)v!r@w4q$+8j=hz&u0p5(m!e)*c3(#yf7^$tg1a6bn")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "Janus")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("frontendBaseUrl", "http://localhost:8000")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.pageSize", 20)
	v.SetDefault("server.maxUploadSize", "10M")
	v.SetDefault("server.rateLimitRps", 1.0)
	v.SetDefault("server.rateLimitBurst", 5)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.path", "janus.db")
	v.SetDefault("database.user", "janus")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "janus")
	v.SetDefault("database.disableTls", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "janus:session")

	v.SetDefault("aws.region", "sa-east-1")
	v.SetDefault("aws.s3Bucket", "")
	v.SetDefault("aws.ssmPath", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.Env = env
	conf.Build = v.GetString("build")
	conf.WorkDir = workDir

	conf.AppName = v.GetString("appName")
	conf.SecretKey = v.GetString("secretKey")
	conf.DefaultFromEmail = mail.Address{Name: v.GetString("defaultFromName"), Address: v.GetString("defaultFromEmail")}
	conf.SendgridApiKey = v.GetString("sendgridApiKey")
	conf.RollbarToken = v.GetString("rollbarToken")
	conf.FrontendBaseURL = strings.TrimSuffix(v.GetString("frontendBaseUrl"), "/")
	conf.PasswordResetTimeoutDelta = v.GetDuration("passwordResetTimeoutDelta")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.PageSize = v.GetInt("server.pageSize")
	conf.Server.MaxUploadSize = v.GetString("server.maxUploadSize")
	conf.Server.RateLimitRPS = v.GetFloat64("server.rateLimitRps")
	conf.Server.RateLimitBurst = v.GetInt("server.rateLimitBurst")

	conf.Database.Engine = strings.ToLower(v.GetString("database.engine"))
	conf.Database.Path = v.GetString("database.path")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.DisableTLS = v.GetBool("database.disableTls")

	conf.Redis.Address = v.GetString("redis.address")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")
	conf.Redis.Prefix = v.GetString("redis.prefix")

	conf.AWS.Region = v.GetString("aws.region")
	conf.AWS.S3Bucket = v.GetString("aws.s3Bucket")
	conf.AWS.SSMPath = v.GetString("aws.ssmPath")

	return conf
}

// NewTestConfig returns the configuration used by tests: sqlite in memory, no external services.
func NewTestConfig() *Config {
	conf := new(Config)
	conf.TestMode = true
	conf.Env = "TEST"
	conf.Build = "test"
	conf.WorkDir = Getwd()
	conf.AppName = "Janus"
	conf.SecretKey = "secret"
	conf.DefaultFromEmail = mail.Address{Name: "Janus", Address: "noreply@localhost"}
	conf.FrontendBaseURL = "http://localhost:8000"
	conf.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.Server.Host = "localhost"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.PageSize = 20
	conf.Server.MaxUploadSize = "10M"
	conf.Database.Engine = "sqlite"
	conf.Database.Path = ":memory:"
	conf.Redis.Prefix = "janus:test:session"
	return conf
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested, so walking up is needed.
// Falls back to the current working directory when running outside of the source tree.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
