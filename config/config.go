package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig         RedisConfig
	HttpPort            int
	StorageType         StorageType
	WakePollIntervalSec int
	SweepIntervalSec    int
	StuckClaimBoundSec  int
	SynchronousStepCap  int
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}
