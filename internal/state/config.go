package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/scene"
	"github.com/temoto/hwcomposer/internal/tele"
	"github.com/temoto/hwcomposer/log2"
)

const (
	DriverDrm  = "drm"
	DriverMock = "mock"

	VsyncDrm   = "drm"
	VsyncGpio  = "gpio"
	VsyncTimer = "timer"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Hardware struct {
		Driver string `hcl:"driver"`
		Card   string `hcl:"card"`
		// Variant name overrides detection by PCI device id.
		Variant       string `hcl:"variant"`
		DeviceID      int    `hcl:"device_id"` // mock driver only
		Fbdev         string `hcl:"fbdev"`
		CacheCapacity int    `hcl:"cache_capacity"`
	}
	Displays []DisplayConfig `hcl:"display"`
	Hotplug  struct {
		Enable     bool   `hcl:"enable"`
		DevPath    string `hcl:"devpath"`
		TimeoutSec int    `hcl:"timeout_sec"`
	}
	Input struct {
		Device string `hcl:"device"`
	}
	Log struct {
		Level string `hcl:"level"`
	}
	Persist struct {
		Root string `hcl:"root"`
	}
	Scenes []scene.Config `hcl:"scene"`
	Tele   tele.Config

	_copy_guard sync.Mutex //nolint:unused
}

type DisplayConfig struct {
	Name    string `hcl:"name,key"`
	Pipe    int    `hcl:"pipe"`
	Vsync   string `hcl:"vsync"`
	TeChip  string `hcl:"te_chip"`
	TeLine  int    `hcl:"te_line"`
	Refresh int    `hcl:"refresh"` // timer vsync rate, Hz
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) Display(name string) (*DisplayConfig, bool) {
	for i := range c.Displays {
		if c.Displays[i].Name == name {
			return &c.Displays[i], true
		}
	}
	return nil, false
}

func (c *Config) Scene(display string) (scene.Config, bool) {
	for _, s := range c.Scenes {
		if s.Display == display {
			return s, true
		}
	}
	return scene.Config{Display: display}, false
}

func (c *Config) validate() error {
	errs := make([]error, 0, 4)
	switch c.Hardware.Driver {
	case "", DriverDrm, DriverMock:
	default:
		errs = append(errs, errors.NotValidf("config hardware.driver=%s", c.Hardware.Driver))
	}
	if _, err := log2.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, errors.Annotate(err, "config"))
	}
	seen := make(map[string]struct{}, len(c.Displays))
	pipes := make(map[int]struct{}, len(c.Displays))
	for _, d := range c.Displays {
		if _, ok := seen[d.Name]; ok {
			errs = append(errs, errors.AlreadyExistsf("config display=%s", d.Name))
		}
		seen[d.Name] = struct{}{}
		if _, ok := pipes[d.Pipe]; ok {
			errs = append(errs, errors.AlreadyExistsf("config display=%s pipe=%d", d.Name, d.Pipe))
		}
		pipes[d.Pipe] = struct{}{}
		switch d.Vsync {
		case "", VsyncDrm, VsyncTimer:
		case VsyncGpio:
			if d.TeChip == "" {
				errs = append(errs, errors.NotValidf("config display=%s vsync=gpio te_chip empty", d.Name))
			}
		default:
			errs = append(errs, errors.NotValidf("config display=%s vsync=%s", d.Name, d.Vsync))
		}
	}
	for _, s := range c.Scenes {
		if _, ok := seen[s.Display]; !ok {
			errs = append(errs, errors.NotFoundf("config scene display=%s", s.Display))
		}
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.AlreadyExistsf("config source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			*errs = append(*errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		if _, ok := c.includeSeen[fs.Normalize(include.Name)]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if len(errs) == 0 {
		errs = append(errs, c.validate())
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
