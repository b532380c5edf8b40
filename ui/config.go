package ui

import (
	"errors"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/link"
	"github.com/calvinmclean/dispenser/twchart"
)

// SerialPortSimulator selects the simulated dispenser instead of a serial port
const SerialPortSimulator = "Simulator"

// Settings are the values edited in the configuration window
type Settings struct {
	SerialPort  string
	BaudRate    string
	TWChartAddr string
	SessionName string
	ProbesInput string
}

// Simulated returns whether the simulator was selected
func (s Settings) Simulated() bool {
	return s.SerialPort == SerialPortSimulator
}

// Apply copies the settings into cfg
func (s Settings) Apply(cfg *config.Config) error {
	baudRate, err := strconv.Atoi(s.BaudRate)
	if err != nil || baudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %q", s.BaudRate)
	}

	if s.TWChartAddr != "" {
		if _, err := twchart.ParseProbes(s.ProbesInput); err != nil {
			return err
		}
	}

	if !s.Simulated() {
		cfg.Serial.Port = s.SerialPort
	}
	cfg.Serial.BaudRate = baudRate
	cfg.TWChart.Address = s.TWChartAddr
	cfg.TWChart.Probes = s.ProbesInput
	return nil
}

func (s Settings) valid() bool {
	return s.SerialPort != "" &&
		s.BaudRate != "" &&
		s.SessionName != ""
}

type ConfigWindow struct {
	app      fyne.App
	OnSubmit func()
}

func NewConfigWindow(app fyne.App) *ConfigWindow {
	return &ConfigWindow{
		app: app,
	}
}

func (cw *ConfigWindow) loadSettingsFromPreferences(s *Settings, defaults *config.Config) {
	prefs := cw.app.Preferences()
	s.SerialPort = prefs.StringWithFallback("serialPort", "")
	s.BaudRate = prefs.StringWithFallback("baudRate", strconv.Itoa(defaults.Serial.BaudRate))
	s.TWChartAddr = prefs.StringWithFallback("twchartAddr", defaults.TWChart.Address)
	s.SessionName = prefs.StringWithFallback("sessionName", "")
	s.ProbesInput = prefs.StringWithFallback("probesInput", defaults.TWChart.Probes)
}

func (cw *ConfigWindow) saveSettingsToPreferences(s *Settings) {
	prefs := cw.app.Preferences()
	prefs.SetString("serialPort", s.SerialPort)
	prefs.SetString("baudRate", s.BaudRate)
	prefs.SetString("twchartAddr", s.TWChartAddr)
	prefs.SetString("sessionName", s.SessionName)
	prefs.SetString("probesInput", s.ProbesInput)
}

// Show asks for the settings, starting from the saved preferences and the defaults in cfg
func (cw *ConfigWindow) Show(s *Settings, defaults *config.Config) {
	window := cw.app.NewWindow("Dispenser - Configuration")
	window.Resize(fyne.NewSize(400, 250))
	window.SetCloseIntercept(func() {
		// Treat window close as cancel
		window.Close()
		cw.app.Quit()
	})
	window.Show()

	cw.loadSettingsFromPreferences(s, defaults)

	serialPorts, err := link.Ports()
	if err != nil && !errors.Is(err, link.ErrNoSerialPorts) {
		showError(cw.app, window, fmt.Errorf("error getting serial ports: %w", err))
		return
	}

	serialPorts = append(serialPorts, SerialPortSimulator)

	serialEntry := widget.NewSelect(serialPorts, nil)
	if s.SerialPort == "" {
		s.SerialPort = serialPorts[0]
	}
	serialEntry.Bind(binding.BindString(&s.SerialPort))

	sessionEntry := widget.NewEntry()
	sessionEntry.Bind(binding.BindString(&s.SessionName))

	probesEntry := widget.NewEntry()
	probesEntry.Bind(binding.BindString(&s.ProbesInput))

	baudRateEntry := widget.NewEntry()
	baudRateEntry.Bind(binding.BindString(&s.BaudRate))

	twchartAddrEntry := widget.NewEntry()
	twchartAddrEntry.SetPlaceHolder("optional")
	twchartAddrEntry.Bind(binding.BindString(&s.TWChartAddr))

	submitButton := widget.NewButton("Submit", func() {
		cw.saveSettingsToPreferences(s)
		cw.OnSubmit()
		window.Close()
	})
	submitButton.Disable()

	validateForm := func() {
		if s.valid() {
			submitButton.Enable()
		} else {
			submitButton.Disable()
		}
	}

	serialEntry.OnChanged = func(_ string) { validateForm() }
	sessionEntry.OnChanged = func(_ string) { validateForm() }
	probesEntry.OnChanged = func(_ string) { validateForm() }
	baudRateEntry.OnChanged = func(_ string) { validateForm() }
	twchartAddrEntry.OnChanged = func(_ string) { validateForm() }

	validateForm()

	form := container.NewVBox(
		widget.NewCard("Configuration", "", container.NewVBox(
			container.NewGridWithColumns(2,
				widget.NewLabel("Serial Port:"),
				serialEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Baud Rate:"),
				baudRateEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Session Name:"),
				sessionEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("TWChart Address:"),
				twchartAddrEntry,
			),
			container.NewGridWithColumns(2,
				widget.NewLabel("Probes:"),
				probesEntry,
			),
		)),
		container.NewHBox(
			widget.NewButton("Cancel", func() {
				window.Close()
				cw.app.Quit()
			}),
			submitButton,
		),
	)

	window.SetContent(form)
}

func showError(app fyne.App, window fyne.Window, err error) {
	d := dialog.NewError(err, window)
	d.SetOnClosed(func() {
		app.Quit()
	})
	d.Show()
}
