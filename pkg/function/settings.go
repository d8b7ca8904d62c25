package function

import (
	"os"
	"strconv"

	"github.com/shirou/gopsutil/v4/mem"
)

// Environment holds the static function settings the host exposes through env variables.
type Environment struct {
	FunctionName          string
	Handler               string
	Initializer           string
	ServiceName           string
	Region                string
	AccountID             string
	Memory                int // MB
	Timeout               int // seconds
	InitializationTimeout int // seconds
}

// LoadEnvironment reads the FC_* variables. Without FC_FUNCTION_MEMORY_SIZE the total
// memory of the host is used.
func LoadEnvironment() Environment {
	env := Environment{
		FunctionName:          os.Getenv("FC_FUNCTION_NAME"),
		Handler:               os.Getenv("FC_FUNCTION_HANDLER"),
		Initializer:           os.Getenv("FC_FUNCTION_INITIALIZER"),
		ServiceName:           os.Getenv("FC_SERVICE_NAME"),
		Region:                os.Getenv("FC_REGION"),
		AccountID:             os.Getenv("FC_ACCOUNT_ID"),
		Memory:                intEnv("FC_FUNCTION_MEMORY_SIZE"),
		Timeout:               intEnv("FC_FUNCTION_TIMEOUT"),
		InitializationTimeout: intEnv("FC_INITIALIZATION_TIMEOUT"),
	}
	if env.Memory <= 0 {
		env.Memory = hostMemoryMB()
	}
	return env
}

func intEnv(key string) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func hostMemoryMB() int {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return int(vm.Total / (1024 * 1024))
}
