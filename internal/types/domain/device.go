package domain

import (
	"fmt"
	"os"
	"os/user"
	"runtime"

	"github.com/labi-le/clipsync/pkg/id"
	"github.com/rs/zerolog"
)

type Device struct {
	ID   id.Unique
	Name string
	Arch string
}

var defaultDevice = initDefaultDevice()

func initDefaultDevice() Device {
	hostname, _ := os.Hostname()
	usr, _ := user.Current()
	name := "unknown@unknown"
	if hostname != "" && usr != nil {
		name = fmt.Sprintf("%s@%s", usr.Username, hostname)
	}

	return Device{
		ID:   id.New(),
		Name: name,
		Arch: runtime.GOARCH,
	}
}

func SelfDevice() Device {
	return defaultDevice
}

func (d Device) String() string {
	return d.Name
}

func (d Device) MarshalZerologObject(e *zerolog.Event) {
	e.Int64("id", d.ID)
	e.Str("name", d.Name)
	e.Str("arch", d.Arch)
}
