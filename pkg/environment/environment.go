package environment

import (
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// Production defines the prod environment
const Production = "prod"

// Staging defines the staging environment
const Staging = "staging"

// Dev defines the dev environment
const Dev = "dev"

// Environment holds all process configuration read from the .env file
type Environment struct {
	Environment   string `mapstructure:"APP_ENV"`
	Cors          string `mapstructure:"CORS"`
	Secret        string `mapstructure:"SECRET"`
	Port          string `mapstructure:"PORT"`
	Database      string `mapstructure:"DATABASE"`
	DatabaseUrl   string `mapstructure:"DATABASE_URL"`
	Redis         string `mapstructure:"REDIS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
}

var Global Environment

func Initialize() {
	data, err := godotenv.Read(".env")
	if err != nil {
		panic(err)
	}

	err = mapstructure.Decode(data, &Global)
	if err != nil {
		panic(err)
	}
}
