package config

import "time"

type Config struct {
	Web    Web
	DB     DB
	Redis  Redis
	Cors   Cors
	Auth   Auth
	Rate   Rate
	Email  Email
	SMS    SMS
	Kafka  Kafka
	Admin  Admin
	Stripe Stripe
	Paypal Paypal
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:govod"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:10"`
	DisableTLS   bool   `conf:"default:true"`
}

type Redis struct {
	Address     string        `conf:"default:localhost:6379"`
	Password    string        `conf:"mask"`
	DB          int           `conf:"default:0"`
	DialTimeout time.Duration `conf:"default:2s"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	SessionLifetime time.Duration `conf:"default:24h"`
}

type Rate struct {
	Burst         int     `conf:"default:5"`
	RPS           float64 `conf:"default:1"`
	ExpiryMinutes int     `conf:"default:10"`
}

type Email struct {
	Address  string
	Password string `conf:"mask"`
	Host     string `conf:"default:smtp.gmail.com"`
	Port     int    `conf:"default:587"`
}

type SMS struct {
	AccountSID string
	AuthToken  string `conf:"mask"`
	From       string
}

type Kafka struct {
	Brokers []string `conf:"default:localhost:9092"`
	Topic   string   `conf:"default:govod.orders"`
	Enabled bool     `conf:"default:false"`
}

// Admin is who gets told about new orders.
type Admin struct {
	Email string
	Phone string
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/checkout/success"`
	CancelURL     string `conf:"default:http://localhost:3000/checkout/cancel"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}
