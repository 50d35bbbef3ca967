package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

// Config holds the waterfall tool settings, populated from CLI flags.
type Config struct {
	DBPath     string
	SessionID  int64
	OutputFile string
	Format     ImageFormat
	Theme      ColorTheme
	NoEvents   bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfigFromCLI() (*Config, error) {
	c := Config{Format: ImagePNG}

	var imageFormat, theme string
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file (extension is appended)")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(ThemeEnhanced), "Color theme. [classic, grayscale, thermal, enhanced]")
	flag.BoolVar(&c.NoEvents, "no-events", false, "Do not draw detected event boxes")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := colorThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return &c, nil
}
