package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/nasa-jpl/picamlab/config"
	"github.com/nasa-jpl/picamlab/generichttp"
	"github.com/nasa-jpl/picamlab/generichttp/camera"
	"github.com/nasa-jpl/picamlab/host"
	"github.com/nasa-jpl/picamlab/imgrec"
	"github.com/nasa-jpl/picamlab/server/middleware/locker"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	cfg config.Config
)

func setupconfig() {
	var err error
	_, cfg, err = config.Load(config.FileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
}

func root() {
	str := `picam-http exposes control of Princeton Instruments cameras over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	picam-http <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `picam-http is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Any key may be
overridden from the environment with the PICAM_ prefix; nested keys use a double
underscore, for example PICAM_RECORDER__ROOT=/data.
The command mkconf generates the configuration file with the default values.

Linkage selects how libpicam is reached.  demo is an in-process simulation,
dlopen loads Library at runtime and requires a binary built with -tags picamdl.
With Fallback set, a demo camera is opened when no camera is connected.

If for some reason there is an error during server bootup, it may be that a feature is not supported by the camera.
Modify the BootupArgs portion of the config to remove the offending parameters.

GET /endpoints lists every route.  POST /command takes the numeric host
commands, {"cmd": 1, "params": {"exposure": 100}}.`
	fmt.Println(str)
}

func mkconf() {
	f, err := os.Create(config.FileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = config.Write(f, cfg)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	err := config.Write(os.Stdout, cfg)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("picam-http version %v\n", Version)
}

func run() {
	ctl, err := config.Controller(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer config.Shutdown(ctl)
	v, err := ctl.Version()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("picam version %s, session %s", v, ctl.ID)

	d, err := ctl.OpenFirst()
	if err != nil {
		log.Fatal(err)
	}
	log.Println("connected to camera", d)
	err = d.SetFullROI()
	if err != nil {
		log.Fatal(err)
	}
	err = d.Configure(cfg.BootupArgs)
	if err != nil {
		log.Fatal(err)
	}
	err = d.CommitAndChange()
	if err != nil {
		log.Fatal(err)
	}

	args := cfg.Recorder
	r := &imgrec.Recorder{Root: args.Root, Prefix: args.Prefix, Ext: args.Ext, Enabled: args.Root != ""}
	w := camera.NewHTTPCamera(d, r)
	w.RT()[generichttp.MethodPath{Method: http.MethodPost, Path: "/command"}] = host.HTTPCommand(host.Attach(ctl, d))
	l := locker.New()
	locker.Inject(w, l)

	// clean up the submux string
	hndlrS := cfg.Root
	hndlrS = generichttp.SubMuxSanitize(hndlrS)
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	mux := chi.NewRouter()
	mux.Use(l.Check)
	root.Mount(hndlrS, mux)
	w.RT().Bind(mux)
	addr := cfg.Addr + cfg.Root
	log.Println("now listening for requests at ", addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, root))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
