package util

import "os"

// dockerEnvFile is created by the Docker runtime in every container
var dockerEnvFile = "/.dockerenv"

// IsRunningInDocker reports whether the process runs inside a Docker
// container. db.New uses it to refuse creating a fresh SQLite file that
// would vanish with the container.
func IsRunningInDocker() bool {
	_, err := os.Stat(dockerEnvFile)
	return err == nil
}
