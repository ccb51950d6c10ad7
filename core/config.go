package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration, loaded once at start up.
var Conf *Config

type (
	ServerConfig struct {
		Host               string
		Port               int
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres, pgx, sqlite or memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite file; ":memory:" for a throwaway DB
	}

	AcademyConfig struct {
		// UTCOffset is the academy's fixed local offset, e.g. "+09:00".
		// Deadlines end at 23:59:59 in this offset.
		UTCOffset string
	}

	SchedulerConfig struct {
		Enabled bool
		Spec    string
		Timeout time.Duration
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string
		SendgridApiKey  string

		Server    ServerConfig
		Database  DatabaseConfig
		Academy   AcademyConfig
		Scheduler SchedulerConfig

		defaultFromEmail string
	}
)

func init() {
	Conf = LoadConfig()
}

// LoadConfig reads defaults, the optional `config/.env.<env>` file and the environment.
// Environment keys are prefixed with the upper-cased ENV, e.g. DEV_DATABASE_HOST.
func LoadConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "StudyLink")
	v.SetDefault("secretKey", "q8#m1p(zt!4rk2$vd9@fe&x7wn5+ay0c=hs3*bj6u_lo)gi")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "StudyLink <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "studylink")
	v.SetDefault("database.user", "studylink")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "studylink.db")
	v.SetDefault("academy.utcOffset", "+09:00")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("scheduler.timeout", 50*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		WorkDir:         wd,
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetInt("server.port"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Academy: AcademyConfig{
			UTCOffset: v.GetString("academy.utcOffset"),
		},
		Scheduler: SchedulerConfig{
			Enabled: v.GetBool("scheduler.enabled"),
			Spec:    v.GetString("scheduler.spec"),
			Timeout: v.GetDuration("scheduler.timeout"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// Address returns the server's listen address.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Address returns the database host:port.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// AcademyLocation returns the academy's fixed-offset zone.
// An unparsable offset falls back to UTC+09:00.
func (c *Config) AcademyLocation() *time.Location {
	offset, err := ParseUTCOffset(c.Academy.UTCOffset)
	if err != nil {
		offset = 9 * 60 * 60
	}
	return time.FixedZone("academy", offset)
}
