package domain

// Settings contains the runtime configuration of the server.
type Settings struct {
	Server          ServerSettings      `mapstructure:"server"`
	DataDir         string              `mapstructure:"data_dir"`
	WorkDir         string              `mapstructure:"work_dir"`
	DefaultLanguage string              `mapstructure:"default_language"`
	PricePerHour    float64             `mapstructure:"price_per_hour"`
	Tools           ToolSettings        `mapstructure:"tools"`
	Recognition     RecognitionSettings `mapstructure:"recognition"`
	Workers         WorkerSettings      `mapstructure:"workers"`
	Status          StatusSettings      `mapstructure:"status"`
	Log             LogSettings         `mapstructure:"log"`
	Storage         StorageSettings     `mapstructure:"storage"`
	Redis           RedisSettings       `mapstructure:"redis"`
	AMQP            AMQPSettings        `mapstructure:"amqp"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr"`
}

type ToolSettings struct {
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
}

type RecognitionSettings struct {
	URL               string `mapstructure:"url"`
	APIKey            string `mapstructure:"api_key"`
	ServiceName       string `mapstructure:"service_name"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type WorkerSettings struct {
	Count     int `mapstructure:"count"`
	QueueSize int `mapstructure:"queue_size"`
}

// StatusSettings tunes transient status reconciliation.
type StatusSettings struct {
	// SucceededGraceSeconds keeps a succeeded job visible until the persisted
	// listing catches up. Zero drops it immediately.
	SucceededGraceSeconds int `mapstructure:"succeeded_grace"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// StorageSettings selects the persisted store backend: "file" or "s3".
type StorageSettings struct {
	Backend string     `mapstructure:"backend"`
	S3      S3Settings `mapstructure:"s3"`
}

type S3Settings struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// RedisSettings enables the upload rate limiter when Addr is set.
type RedisSettings struct {
	Addr          string `mapstructure:"addr"`
	DB            int    `mapstructure:"db"`
	UploadLimit   int    `mapstructure:"upload_limit"`
	WindowSeconds int    `mapstructure:"window_seconds"`
}

// AMQPSettings enables status change notifications when URL is set.
type AMQPSettings struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}
