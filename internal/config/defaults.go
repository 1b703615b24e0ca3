package config

import (
	"os"
	"path/filepath"

	"transcript-server/internal/domain"
)

// DefaultSettings returns baseline configuration for a fresh installation.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Server:          domain.ServerSettings{Addr: ":8080"},
		DataDir:         filepath.Join(homeDir, ".transcript-server", "db"),
		WorkDir:         filepath.Join(os.TempDir(), "transcript-server"),
		DefaultLanguage: "en",
		PricePerHour:    20.0,
		Tools: domain.ToolSettings{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Recognition: domain.RecognitionSettings{
			URL:         "https://stream-fra.watsonplatform.net/speech-to-text/api",
			ServiceName: "IBM",
		},
		Workers: domain.WorkerSettings{
			Count:     4,
			QueueSize: 64,
		},
		Log: domain.LogSettings{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Storage: domain.StorageSettings{Backend: "file"},
		Redis: domain.RedisSettings{
			UploadLimit:   10,
			WindowSeconds: 60,
		},
		AMQP: domain.AMQPSettings{Exchange: "transcripts"},
	}
}

// settingsMap flattens settings into viper keys.
func settingsMap(s domain.Settings) map[string]any {
	return map[string]any{
		"server.addr":                     s.Server.Addr,
		"data_dir":                        s.DataDir,
		"work_dir":                        s.WorkDir,
		"default_language":                s.DefaultLanguage,
		"price_per_hour":                  s.PricePerHour,
		"tools.ffmpeg":                    s.Tools.FFmpeg,
		"tools.ffprobe":                   s.Tools.FFprobe,
		"recognition.url":                 s.Recognition.URL,
		"recognition.api_key":             s.Recognition.APIKey,
		"recognition.service_name":        s.Recognition.ServiceName,
		"recognition.requests_per_minute": s.Recognition.RequestsPerMinute,
		"workers.count":                   s.Workers.Count,
		"workers.queue_size":              s.Workers.QueueSize,
		"status.succeeded_grace":          s.Status.SucceededGraceSeconds,
		"log.level":                       s.Log.Level,
		"log.format":                      s.Log.Format,
		"log.output":                      s.Log.Output,
		"log.file":                        s.Log.File,
		"storage.backend":                 s.Storage.Backend,
		"storage.s3.endpoint":             s.Storage.S3.Endpoint,
		"storage.s3.access_key":           s.Storage.S3.AccessKey,
		"storage.s3.secret_key":           s.Storage.S3.SecretKey,
		"storage.s3.bucket":               s.Storage.S3.Bucket,
		"storage.s3.use_ssl":              s.Storage.S3.UseSSL,
		"redis.addr":                      s.Redis.Addr,
		"redis.db":                        s.Redis.DB,
		"redis.upload_limit":              s.Redis.UploadLimit,
		"redis.window_seconds":            s.Redis.WindowSeconds,
		"amqp.url":                        s.AMQP.URL,
		"amqp.exchange":                   s.AMQP.Exchange,
	}
}
