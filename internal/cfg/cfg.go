package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/joho/godotenv"
)

const (
	CatalogPostgres = "postgres"
	CatalogSQLite   = "sqlite"
	CatalogMemory   = "memory"

	IndexMemory = "memory"
	IndexQdrant = "qdrant"
)

type Config struct {
	Http    *HTTPConfig
	Grpc    *GRPCConfig
	Catalog *CatalogCfg
	Db      *PGDBCfg
	SQLite  *SQLiteCfg
	Index   *IndexCfg
	Qdrant  *QdrantCfg
	Redis   *RedisCfg
	Minio   *MinIOCfg
	Gemini  *GeminiCfg
	Ml      *MLServiceCfg
	Kafka   *KafkaCfg
	Ingest  *IngestCfg
	Search  *SearchCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

// CatalogCfg выбирает хранилище каталога и истории поиска.
type CatalogCfg struct {
	Driver string // postgres | sqlite | memory
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type SQLiteCfg struct {
	Path string
}

// IndexCfg выбирает реализацию векторного индекса и фиксирует размерность D.
type IndexCfg struct {
	Driver     string // memory | qdrant
	VectorSize int
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
}

type RedisCfg struct {
	Enabled     bool
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ProductTTL  time.Duration
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название конкретного бакета в Minio
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	PublicBaseURL     string // База публичных ссылок на объекты
	MaxImageSize      int64  // Лимит размера изображения в байтах
	FetchTimeout      time.Duration
}

type GeminiCfg struct {
	APIKey         string
	VisionModel    string
	EmbeddingModel string
}

type MLServiceCfg struct {
	MaxConcurrent     int
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
	RequestTimeout    time.Duration
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type IngestCfg struct {
	Concurrency int
}

type SearchCfg struct {
	DefaultTopK int
	MaxTopK     int
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
// Переменные из .env (если файл есть) не перезаписывают уже заданные в окружении.
func Load(log logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	catalog, err := loadCatalogCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var db *PGDBCfg
	if catalog.Driver == CatalogPostgres {
		db, err = loadPGDBCfg(log)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	index, err := loadIndexCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ingest, err := loadIngestCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:    http,
		Grpc:    loadGRPCConfig(),
		Catalog: catalog,
		Db:      db,
		SQLite:  &SQLiteCfg{Path: getEnvOrDefault("SQLITE_PATH", "visual-search.db")},
		Index:   index,
		Qdrant:  qdrant,
		Redis:   redis,
		Minio:   minio,
		Gemini:  loadGeminiCfg(),
		Ml:      ml,
		Kafka:   kafka,
		Ingest:  ingest,
		Search:  search,
	}, nil
}

func loadCatalogCfg() (*CatalogCfg, error) {
	driver := strings.ToLower(getEnvOrDefault("CATALOG_DRIVER", CatalogPostgres))
	switch driver {
	case CatalogPostgres, CatalogSQLite, CatalogMemory:
		return &CatalogCfg{Driver: driver}, nil
	default:
		return nil, fmt.Errorf("%w: CATALOG_DRIVER=%q", e.ErrIncorrectEnvVariable, driver)
	}
}

func loadIndexCfg() (*IndexCfg, error) {
	driver := strings.ToLower(getEnvOrDefault("INDEX_DRIVER", IndexQdrant))
	if driver != IndexMemory && driver != IndexQdrant {
		return nil, fmt.Errorf("%w: INDEX_DRIVER=%q", e.ErrIncorrectEnvVariable, driver)
	}

	vectorSize, err := parseIntEnv("VECTOR_SIZE", 768)
	if err != nil {
		return nil, e.Wrap("VECTOR_SIZE", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("%w: VECTOR_SIZE must be positive", e.ErrIncorrectEnvVariable)
	}

	return &IndexCfg{Driver: driver, VectorSize: vectorSize}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultTopic             = "product-events"
	)

	enabled, err := strconv.ParseBool(getEnvOrDefault("KAFKA_ENABLED", "false"))
	if err != nil {
		return nil, e.Wrap("KAFKA_ENABLED", err)
	}
	if !enabled {
		return &KafkaCfg{Enabled: false}, nil
	}

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Enabled:           true,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL       = false
		defaultEndpoint     = "minio:9000"
		defaultBucket       = "products"
		defaultMaxImageSize = 10 << 20
		defaultFetchTimeout = 15 * time.Second
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	maxImageSize, err := parseIntEnv("MAX_IMAGE_SIZE", defaultMaxImageSize)
	if err != nil {
		log.Errorf(err, "invalid MAX_IMAGE_SIZE")
		return nil, err
	}

	fetchTimeout, err := parseDurationEnv("IMAGE_FETCH_TIMEOUT", defaultFetchTimeout)
	if err != nil {
		log.Errorf(err, "invalid IMAGE_FETCH_TIMEOUT")
		return nil, err
	}

	endpoint := getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint)
	bucket := getEnvOrDefault("BUCKET_NAME", defaultBucket)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		PublicBaseURL:     strings.TrimRight(getEnvOrDefault("MINIO_PUBLIC_BASE_URL", fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)), "/"),
		MaxImageSize:      int64(maxImageSize),
		FetchTimeout:      fetchTimeout,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 15 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode  = "disable"
		defaultMaxConns = 10
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil || maxConns <= 0 {
		err = fmt.Errorf("%w: POSTGRES_MAX_CONNS must be a positive integer", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid POSTGRES_MAX_CONNS")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns: int32(maxConns),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultHost           = "localhost"
		defaultCollection     = "products"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", defaultHost),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultProductTTL   = 3 * time.Minute
	)

	enabled, err := strconv.ParseBool(getEnvOrDefault("REDIS_ENABLED", "false"))
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	productTTL, err := parseDurationEnv("PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_TTL")
		return nil, err
	}

	return &RedisCfg{
		Enabled:     enabled,
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ProductTTL:  productTTL,
	}, nil
}

func loadGeminiCfg() *GeminiCfg {
	const (
		defaultVisionModel    = "gemini-2.0-flash"
		defaultEmbeddingModel = "text-embedding-004"
	)

	return &GeminiCfg{
		APIKey:         getEnv("GEMINI_API_KEY"),
		VisionModel:    getEnvOrDefault("GEMINI_VISION_MODEL", defaultVisionModel),
		EmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", defaultEmbeddingModel),
	}
}

func loadMLServiceCfg() (*MLServiceCfg, error) {
	const (
		defaultMaxConcurrent  = 8
		defaultMaxRetries     = 3
		defaultRPS            = 5.0
		defaultBurst          = 5
		defaultRequestTimeout = 30 * time.Second
	)

	maxConcurrent, err := parseIntEnv("ML_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("ML_MAX_CONCURRENT", err)
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	rps, err := strconv.ParseFloat(getEnvOrDefault("ML_RPS", strconv.FormatFloat(defaultRPS, 'f', -1, 64)), 64)
	if err != nil {
		return nil, e.Wrap("ML_RPS", e.ErrIncorrectEnvVariable)
	}

	burst, err := parseIntEnv("ML_BURST", defaultBurst)
	if err != nil {
		return nil, e.Wrap("ML_BURST", err)
	}

	requestTimeout, err := parseDurationEnv("ML_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, e.Wrap("ML_REQUEST_TIMEOUT", err)
	}

	return &MLServiceCfg{
		MaxConcurrent:     maxConcurrent,
		MaxRetries:        maxRetries,
		RequestsPerSecond: rps,
		Burst:             burst,
		RequestTimeout:    requestTimeout,
	}, nil
}

func loadIngestCfg() (*IngestCfg, error) {
	concurrency, err := parseIntEnv("INGEST_CONCURRENCY", 4)
	if err != nil {
		return nil, e.Wrap("INGEST_CONCURRENCY", err)
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("%w: INGEST_CONCURRENCY must be positive", e.ErrIncorrectEnvVariable)
	}

	return &IngestCfg{Concurrency: concurrency}, nil
}

func loadSearchCfg() (*SearchCfg, error) {
	defaultTopK, err := parseIntEnv("SEARCH_DEFAULT_TOP_K", 20)
	if err != nil {
		return nil, e.Wrap("SEARCH_DEFAULT_TOP_K", err)
	}

	// 0 снимает ограничение
	maxTopK, err := parseIntEnv("SEARCH_MAX_TOP_K", 0)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_TOP_K", err)
	}
	if maxTopK < 0 {
		return nil, fmt.Errorf("%w: SEARCH_MAX_TOP_K must not be negative", e.ErrIncorrectEnvVariable)
	}

	return &SearchCfg{DefaultTopK: defaultTopK, MaxTopK: maxTopK}, nil
}

// ConnString собирает DSN для pgx и golang-migrate.
func (c *PGDBCfg) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
