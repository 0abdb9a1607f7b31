package transponder

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type header struct {
	Type string `yaml:"type"`
}

// Decode reads a single transponder description. The "type" key selects the
// delivery system (dvb-c, dvb-s, dvb-t or atsc), the remaining keys are the
// yaml fields of the matching transponder struct.
func Decode(r io.Reader) (Transponder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read transponder: %w", err)
	}

	var h header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("could not parse transponder: %w", err)
	}

	switch strings.ToLower(h.Type) {
	case "dvb-c", "c":
		var c Cable
		err = yaml.Unmarshal(data, &c)
		return c, wrapDecode(err)
	case "dvb-s", "s":
		var s Satellite
		err = yaml.Unmarshal(data, &s)
		return s, wrapDecode(err)
	case "dvb-t", "t":
		var t Terrestrial
		err = yaml.Unmarshal(data, &t)
		return t, wrapDecode(err)
	case "atsc", "a":
		var a Atsc
		err = yaml.Unmarshal(data, &a)
		return a, wrapDecode(err)
	}
	return nil, fmt.Errorf("unknown transponder type %q", h.Type)
}

func wrapDecode(err error) error {
	if err != nil {
		return fmt.Errorf("could not parse transponder: %w", err)
	}
	return nil
}
