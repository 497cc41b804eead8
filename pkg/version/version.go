// Package version reports the vcs revision the binary was built from.
package version

import (
	"encoding/json"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

type Info struct {
	Commit   string `json:"commit"`
	Time     string `json:"time"`
	Modified bool   `json:"modified,omitempty"`
}

// Version is the build info as a json string, logged at startup.
var Version = func() string {
	b, err := json.Marshal(Read())
	if err != nil {
		logrus.Fatal(err)
	}
	return string(b)
}()

func Read() Info {
	v := Info{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.Commit = setting.Value
		case "vcs.time":
			v.Time = setting.Value
		case "vcs.modified":
			v.Modified = setting.Value == "true"
		}
	}
	return v
}
