package main

type Settings struct {
	Port           int      `env:"PORT,default=8000"`
	BasePath       string   `env:"BASE_PATH,default=/presence"`
	LogEncoding    string   `env:"LOG_ENCODING,default=console"`
	JWTSecret      string   `env:"JWT_SECRET,required=true"`
	APIKeys        []string `env:"API_KEYS,required=true"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
	RedisAddr      string   `env:"REDIS_ADDR"`
	MongoDBURI     string   `env:"MONGODB_URI"`
	BuzzLimit      int      `env:"BUZZ_LIMIT,default=3"`
	BuzzWindowMs   int      `env:"BUZZ_WINDOW_MS,default=60000"`
}
