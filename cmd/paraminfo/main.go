// Command paraminfo prints every parameter of a camera: its ID, value type,
// access, relevance, constraint type, onlineability, value and capable
// constraint.
//
// Usage:
//
//	paraminfo [model] ['serial']
//
// With no arguments the first camera is opened, falling back to the
// configured demo camera.  A model number, a single quoted serial number, or
// both, open that demo camera instead.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/session"
)

const (
	col1 = 14
	col2 = 28
	col3 = 12
)

// demoArgs parses the optional demo model and quoted serial number
func demoArgs(args []string) (model int, serial string, err error) {
	model = -1
	if len(args) > 2 {
		return 0, "", fmt.Errorf("at most a model and a serial number, got %d arguments", len(args))
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "'") {
			if serial != "" {
				return 0, "", fmt.Errorf("demo camera serial number already supplied")
			}
			if len(arg) < 3 || !strings.HasSuffix(arg, "'") {
				return 0, "", fmt.Errorf("invalid demo camera serial number %s", arg)
			}
			serial = arg[1 : len(arg)-1]
			continue
		}
		if model != -1 {
			return 0, "", fmt.Errorf("demo camera model already supplied")
		}
		if model, err = strconv.Atoi(arg); err != nil {
			return 0, "", fmt.Errorf("invalid demo camera model %s", arg)
		}
	}
	return model, serial, nil
}

func row(a, b, c, d string) {
	fmt.Printf("%-*s%-*s%-*s%s\n", col1, a, col2, b, col3, c, d)
}

func values(fs []float64) string {
	s := make([]string, len(fs))
	for i, f := range fs {
		s[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(s, ", ")
}

func constraint(info session.ParameterInfo) string {
	switch {
	case info.Collection != nil:
		return "{" + values(info.Collection.Values) + "}"
	case info.Range != nil:
		r := info.Range
		if r.Empty {
			return "empty"
		}
		s := fmt.Sprintf("[%g, %g]", r.Minimum, r.Maximum)
		if r.Increment != 0 {
			s += fmt.Sprintf(" step %g", r.Increment)
		}
		if len(r.Outlying) > 0 {
			s += " also {" + values(r.Outlying) + "}"
		}
		if len(r.Excluded) > 0 {
			s += " except {" + values(r.Excluded) + "}"
		}
		return s
	}
	return "N/A"
}

func show(lib picam.Library, info session.ParameterInfo) {
	p := info.Parameter
	vt, _ := lib.EnumerationString(picam.EnumValueType, int(p.ValueType()))
	ct, _ := lib.EnumerationString(picam.EnumConstraintType, int(p.ConstraintType()))
	online := "N/A"
	if info.Access != picam.AccessReadOnly {
		online = strconv.FormatBool(info.Onlineable)
	}
	row("Parameter:", p.String(), "ID:", fmt.Sprintf("%#x", int(p)))
	row("Value Type:", vt, "Access:", info.Access.String())
	row("Constraint:", ct, "Relevant:", strconv.FormatBool(info.Relevant))
	row("Value:", fmt.Sprint(info.Value), "Onlineable:", online)
	row("Capable:", constraint(info), "", "")
	fmt.Println()
}

func main() {
	model, serial, err := demoArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	_, cfg, err := config.Load(config.FileName)
	if err != nil {
		log.Fatal(err)
	}
	ctl, err := config.Controller(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer config.Shutdown(ctl)

	var d *session.Device
	if model == -1 && serial == "" {
		d, err = ctl.OpenFirst()
	} else {
		if model == -1 {
			model = int(picam.ModelPixis100B)
		}
		if serial == "" {
			serial = "12345"
		}
		d, err = ctl.OpenDemo(picam.Model(model), serial)
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(d.ID)
	fmt.Println()

	ps, err := d.Parameters()
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range ps {
		info, err := d.Describe(p)
		if err != nil {
			log.Printf("%s: %v", p, err)
			continue
		}
		show(ctl.Lib, info)
	}
}
