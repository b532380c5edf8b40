package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/firmware/commands"
	"github.com/calvinmclean/dispenser/link"
	"github.com/calvinmclean/dispenser/logging"
	"github.com/calvinmclean/dispenser/ui"
)

func main() {
	var configFile, port, sessionName, probesInput string
	var mock, debug bool
	flag.StringVar(&configFile, "config", "dispenser.yaml", "Path to the YAML config file")
	flag.StringVar(&port, "port", "", "Serial port. Overrides the config file")
	flag.StringVar(&sessionName, "session", "", "Session name for history and TWChart. Default is the current time")
	flag.StringVar(&probesInput, "probes", "", "Set probe mapping in format \"1=Name,2=Name,...\". Default is 1=Liquid")
	flag.BoolVar(&mock, "mock", false, "Use the simulated dispenser instead of a serial port")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	logger := logging.NewDefaultLogger(debug)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Fatalw("error loading config", "error", err)
	}
	if port != "" {
		cfg.Serial.Port = port
	}
	if probesInput != "" {
		cfg.TWChart.Probes = probesInput
	}
	if sessionName == "" {
		sessionName = time.Now().Format(time.DateTime)
	}

	opts := options{mock: mock, sessionName: sessionName}

	if os.Getenv("ENABLE_UI") == "true" {
		runUI(cfg, opts, logger)
		return
	}

	err = runCLI(cfg, opts, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Fatalw("error running dispenser", "error", err)
	}
}

func runUI(cfg *config.Config, opts options, logger *zap.SugaredLogger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	application := app.NewWithID("com.calvinmclean.dispenser")

	var settings ui.Settings
	configWindow := ui.NewConfigWindow(application)

	var s *session
	configWindow.OnSubmit = func() {
		err := settings.Apply(cfg)
		if err != nil {
			logger.Errorw("invalid settings", "error", err)
			application.Quit()
			return
		}
		opts.mock = opts.mock || settings.Simulated()
		opts.sessionName = settings.SessionName

		s, err = start(ctx, cfg, opts, logger)
		if err != nil {
			logger.Errorw("error starting session", "error", err)
			application.Quit()
			return
		}

		ui.NewDispenserUI(s.device, s.hub.Subscribe(8)).Show(ctx, application)
	}

	configWindow.Show(&settings, cfg)
	application.Run()

	if s != nil {
		_ = s.close()
	}
}

func runCLI(cfg *config.Config, opts options, logger *zap.SugaredLogger, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Fprint(out, commands.Help())

	s, err := start(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer s.close()

	readings := s.hub.Subscribe(8)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for r := range readings {
			fmt.Fprintf(out, "%s g\t%s C\n", dispenser.FormatFloat(r.Weight), dispenser.FormatFloat(r.Temperature))
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case line, ok := <-lines:
			if !ok {
				done = true
				break
			}
			err := sendLine(s.device, line)
			if err != nil {
				logger.Errorw("error sending command", "input", line, "error", err)
			}
		}
	}

	// the hub closes its subscriptions once ctx is done
	cancel()
	<-printed

	return nil
}

// sendLine sends the command typed on one line of input: -1 tares, -2 calibrates and anything else is a volume
func sendLine(d link.Device, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	v, err := strconv.Atoi(line)
	if err != nil {
		return fmt.Errorf("invalid command %q: %w", line, err)
	}

	switch v {
	case dispenser.CommandTare:
		return d.Tare()
	case dispenser.CommandCalibrate:
		return d.Calibrate()
	default:
		return d.Dispense(v)
	}
}
