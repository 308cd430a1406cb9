package config

import (
	"os"
	"path/filepath"
)

const DefaultInstance = "default"

// InstancePaths contains all paths for a chorus instance.
type InstancePaths struct {
	Home      string // Instance home directory
	Config    string // YAML configuration file path
	PairStore string // SQLite store of paired devices
	PIDFile   string // Daemon PID file
	Logs      string // Logs directory
	RunDir    string // Runtime state directory
}

// GetInstancePaths returns all paths for a given instance.
// Empty instance name defaults to "default".
func GetInstancePaths(instanceName string) InstancePaths {
	if instanceName == "" {
		instanceName = DefaultInstance
	}

	instanceDir := filepath.Join(GetChorusHome(), "instances", instanceName)

	return InstancePaths{
		Home:      instanceDir,
		Config:    filepath.Join(instanceDir, "config.yaml"),
		PairStore: filepath.Join(instanceDir, "pairs.db"),
		PIDFile:   filepath.Join(instanceDir, "run", "chorusd.pid"),
		Logs:      filepath.Join(instanceDir, "logs"),
		RunDir:    filepath.Join(instanceDir, "run"),
	}
}

// GetChorusHome returns the chorus home directory (~/.chorus).
func GetChorusHome() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".chorus")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureInstanceDirs creates the directory structure for the given instance if it does not exist.
func EnsureInstanceDirs(instanceName string) (InstancePaths, error) {
	paths := GetInstancePaths(instanceName)

	for _, dir := range []string{paths.Home, paths.Logs, paths.RunDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
