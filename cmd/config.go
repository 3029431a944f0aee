package main

import "time"

type Config struct {
	Host           string        `env:"HOST,default=0.0.0.0"`
	Port           int           `env:"PORT,default=6000"`
	MetricsPort    int           `env:"METRICS_PORT,default=9100"`
	RedisURL       string        `env:"REDIS_URL,required=true"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
	CallTimeout    time.Duration `env:"CALL_TIMEOUT,default=3s"`
}
