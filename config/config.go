package config

import "time"

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"fern"`
	Port       int    `env:"PORT" env-default:"3005"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// Source database (operational ticketing system, read-only)
	SourceHost            string        `env:"SOURCE_DB_HOST" env-default:"" validate:"required"`
	SourcePort            int           `env:"SOURCE_DB_PORT" env-default:"1433"`
	SourceUserName        string        `env:"SOURCE_DB_USER_NAME" env-default:""`
	SourcePassword        string        `env:"SOURCE_DB_PASSWORD" env-default:""`
	SourceName            string        `env:"SOURCE_DB_NAME" env-default:"" validate:"required"`
	SourceMaxOpenConns    int           `env:"SOURCE_DB_MAX_OPEN_CONNS" env-default:"10"`
	SourceMaxIdleConns    int           `env:"SOURCE_DB_MAX_IDLE_CONNS" env-default:"5"`
	SourceConnMaxLifetime time.Duration `env:"SOURCE_DB_CONN_MAX_LIFETIME" env-default:"10m"`

	// Warehouse database (star schema, owned by this service)
	WarehouseHost                  string        `env:"DW_DB_HOST" env-default:"" validate:"required"`
	WarehousePort                  int           `env:"DW_DB_PORT" env-default:"1433"`
	WarehouseUserName              string        `env:"DW_DB_USER_NAME" env-default:""`
	WarehousePassword              string        `env:"DW_DB_PASSWORD" env-default:""`
	WarehouseName                  string        `env:"DW_DB_NAME" env-default:"" validate:"required"`
	WarehouseMaxOpenConns          int           `env:"DW_DB_MAX_OPEN_CONNS" env-default:"10"`
	WarehouseMaxIdleConns          int           `env:"DW_DB_MAX_IDLE_CONNS" env-default:"5"`
	WarehouseConnMaxLifetime       time.Duration `env:"DW_DB_CONN_MAX_LIFETIME" env-default:"10m"`
	WarehouseMigrationFolderPath   string        `env:"DW_DB_MIGRATION_FOLDER_PATH" env-default:"db/dw"`
	WarehouseMigrationVersion      int           `env:"DW_DB_MIGRATION_VERSION" env-default:"0"`
	WarehouseMigrationForce        int           `env:"DW_DB_MIGRATION_FORCE" env-default:"0"`
	WarehouseMigrationAutoRollback bool          `env:"DW_DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Elasticsearch
	ElasticURLs               []string `env:"ELASTICSEARCH_URLS" env-default:"http://localhost:9200"`
	ElasticUser               string   `env:"ELASTICSEARCH_USER" env-default:""`
	ElasticPassword           string   `env:"ELASTICSEARCH_PASSWORD" env-default:""`
	ElasticIndex              string   `env:"ELASTICSEARCH_INDEX" env-default:"tickets"`
	ElasticInsecureSkipVerify bool     `env:"ELASTICSEARCH_INSECURE_SKIP_VERIFY" env-default:"true"`
	ElasticBulkWorkers        int      `env:"ELASTICSEARCH_BULK_WORKERS" env-default:"2"`

	// Extraction
	// ChunkSize bounds the number of parameters per IN-clause query. SQL Server
	// caps a statement at 2100 parameters, so the default stays under that.
	ChunkSize        int  `env:"EXTRACT_CHUNK_SIZE" env-default:"2000"`
	ExtractLimit     int  `env:"EXTRACT_LIMIT" env-default:"0"`
	FailOnChunkError bool `env:"EXTRACT_FAIL_ON_CHUNK_ERROR" env-default:"false"`

	// Warehouse load
	LoadBatchSize          int  `env:"DW_LOAD_BATCH_SIZE" env-default:"1000"`
	ExplicitIdentityInsert bool `env:"DW_EXPLICIT_IDENTITY_INSERT" env-default:"true"`

	// Scheduling (comma-separated HH:MM times, local clock)
	ScheduleTimes []string `env:"SCHEDULE_TIMES" env-default:"00:10"`

	// Kafka run events (disabled unless brokers are set)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:""`
	KafkaRunTopic     string   `env:"KAFKA_RUN_TOPIC" env-default:"fern-run-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
}
