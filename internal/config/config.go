package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Admin      AdminConfig      `yaml:"admin"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Orders     OrdersConfig     `yaml:"orders"`
	Redis      RedisConfig      `yaml:"redis"`
	Migrations MigrationsConfig `yaml:"migrations"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// DSN собирает строку подключения к postgres; extra добавляется к параметрам запроса
func (d DatabaseConfig) DSN(extra string) string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
	if extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

// JWTConfig настройка jwt, ttl в минутах
type JWTConfig struct {
	Secret        string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL      int    `yaml:"token_ttl" env-default:"10080"`
	AdminTokenTTL int    `yaml:"admin_token_ttl" env-default:"720"`
}

// AdminConfig учётные данные администратора; пароль хранится только в виде bcrypt-хэша
type AdminConfig struct {
	Email        string `yaml:"email" env:"ADMIN_EMAIL"`
	PasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH"`
}

// PaymentsConfig настройки оплаты и платёжных шлюзов
type PaymentsConfig struct {
	Currency          string        `yaml:"currency" env-default:"usd"`
	DeliveryCharge    string        `yaml:"delivery_charge" env-default:"10"`
	FrontendURL       string        `yaml:"frontend_url" env-default:"http://localhost:5173"`
	GatewayTimeout    time.Duration `yaml:"gateway_timeout" env-default:"10s"`
	StripeSecretKey   string        `yaml:"-" env:"STRIPE_SECRET_KEY"`
	StripeWebhookKey  string        `yaml:"-" env:"STRIPE_WEBHOOK_SECRET"`
	RazorpayKeyID     string        `yaml:"-" env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string        `yaml:"-" env:"RAZORPAY_KEY_SECRET"`
}

// OrdersConfig политика жизненного цикла заказов
type OrdersConfig struct {
	StrictTransitions bool `yaml:"strict_transitions" env-default:"false"`
	DeleteGraceDays   int  `yaml:"delete_grace_days" env-default:"30"`
}

// RedisConfig кэш каталога; пустой адрес отключает кэширование
type RedisConfig struct {
	Address    string        `yaml:"address" env:"REDIS_ADDRESS"`
	CatalogTTL time.Duration `yaml:"catalog_ttl" env-default:"5m"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
