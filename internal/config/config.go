package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SNAPSHOT"

// Mainnet defaults for the yearn distribution.
const (
	DefaultSnapshotBlock = uint64(12_843_076)
	DefaultFromBlock     = uint64(10_476_729)
	DefaultGiftFromBlock = uint64(11_287_863)
	DefaultGiftContract  = "0x020171085bcd43b6FD36aD8C95aD61848B1211A2"
)

// DefaultPools are the staking contracts, as label=address.
var DefaultPools = []string{
	"ycrv=0x0001FB050Fe7312791bF6475b96569D83F695C9f",
	"yfi/dai=0x033E52f513F9B98e129381c6708F9faA2DEE5db5",
	"yfi/ycrv=0x3A22dF48d84957F907e67F4313E3D43179040d6E",
	"rewards=0xb01419E74D8a2abb1bbAD82925b19c36C191A701",
	"ygov=0xBa37B002AbaFDd8E89a1995dA52740bbC013D992",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	SnapshotBlock uint64
	FromBlock     uint64
	GiftFromBlock uint64
	GiftContract  string
	Pools         []string
	StakeTopic    string
	GiftTopic     string

	BatchSize    uint64
	Concurrency  int
	Progress     bool
	MaxRetries   int
	RetryBackoff time.Duration

	VoteURL     string
	VoteSpaces  []string
	VoteFirst   int
	VoteCutoff  bool
	CircleURL   string
	CircleIDs   []int64
	HTTPTimeout time.Duration
	HTTPRetries int

	Cohorts        []string
	Derived        bool
	DerivedCohorts []string

	Out    string
	Report string

	CacheBackend string
	CacheDir     string
	PGDSN        string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("snapshot-block", DefaultSnapshotBlock)
	v.SetDefault("from-block", DefaultFromBlock)
	v.SetDefault("gift-from-block", DefaultGiftFromBlock)
	v.SetDefault("gift-contract", DefaultGiftContract)
	v.SetDefault("pool", DefaultPools)
	v.SetDefault("batch-size", uint64(10_000))
	v.SetDefault("concurrency", 8)
	v.SetDefault("progress", true)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("vote-url", "https://hub.snapshot.page/graphql")
	v.SetDefault("vote-space", []string{"yearn", "ybaby.eth"})
	v.SetDefault("vote-first", 100_000)
	v.SetDefault("vote-cutoff", true)
	v.SetDefault("circle-url", "https://coordinape.me/api/users")
	v.SetDefault("circle-id", []string{"1", "2", "3"})
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("http-retries", 2)
	v.SetDefault("derived", true)
	v.SetDefault("out", "blue-pill.json")
	v.SetDefault("report", "table")
	v.SetDefault("cache-backend", "leveldb")
	v.SetDefault("cache-dir", "./cache")
	v.SetDefault("log-level", "info")

	if err := readInto(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	circleIDs, err := parseInt64s(getStringSlice(v, "circle-id"))
	if err != nil {
		return Config{}, fmt.Errorf("circle-id: %w", err)
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		SnapshotBlock:  v.GetUint64("snapshot-block"),
		FromBlock:      v.GetUint64("from-block"),
		GiftFromBlock:  v.GetUint64("gift-from-block"),
		GiftContract:   v.GetString("gift-contract"),
		Pools:          getStringSlice(v, "pool"),
		StakeTopic:     v.GetString("stake-topic"),
		GiftTopic:      v.GetString("gift-topic"),
		BatchSize:      v.GetUint64("batch-size"),
		Concurrency:    v.GetInt("concurrency"),
		Progress:       v.GetBool("progress"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		VoteURL:        v.GetString("vote-url"),
		VoteSpaces:     getStringSlice(v, "vote-space"),
		VoteFirst:      v.GetInt("vote-first"),
		VoteCutoff:     v.GetBool("vote-cutoff"),
		CircleURL:      v.GetString("circle-url"),
		CircleIDs:      circleIDs,
		HTTPTimeout:    v.GetDuration("http-timeout"),
		HTTPRetries:    v.GetInt("http-retries"),
		Cohorts:        getStringSlice(v, "cohort"),
		Derived:        v.GetBool("derived"),
		DerivedCohorts: getStringSlice(v, "derived-cohort"),
		Out:            v.GetString("out"),
		Report:         v.GetString("report"),
		CacheBackend:   v.GetString("cache-backend"),
		CacheDir:       v.GetString("cache-dir"),
		PGDSN:          v.GetString("pg-dsn"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// readInto binds env and flags and reads the config file. Without an explicit
// file, config.yaml in the working directory is optional.
func readInto(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func parseInt64s(items []string) ([]int64, error) {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", item)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
