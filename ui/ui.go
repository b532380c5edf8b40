package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/link"
)

const maxLogLines = 200

// formatWeight and formatTemperature render a reading the way the board's display does
func formatWeight(r dispenser.Reading) string {
	return dispenser.FormatFloat(r.Weight) + " g"
}

func formatTemperature(r dispenser.Reading) string {
	if r.Temperature == dispenser.DisconnectedC {
		return "-- C"
	}
	return dispenser.FormatFloat(r.Temperature) + " C"
}

// commandLog keeps the last lines written to the log accordion
type commandLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *commandLog) add(line string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, line)
	if len(l.lines) > maxLogLines {
		l.lines = l.lines[len(l.lines)-maxLogLines:]
	}

	return strings.Join(l.lines, "\n")
}

func createLogAccordion() (*widget.Accordion, *widget.Label) {
	logContent := widget.NewLabel("")
	logScroll := container.NewVScroll(logContent)
	logScroll.SetMinSize(fyne.NewSize(300, 100))

	return widget.NewAccordion(
		widget.NewAccordionItem("Commands", logScroll),
	), logContent
}

// DispenserUI is a window that shows the dispenser readings and sends commands to it
type DispenserUI struct {
	device   link.Device
	readings <-chan dispenser.Reading
}

// NewDispenserUI creates the UI for d. readings is usually a Hub subscription
func NewDispenserUI(d link.Device, readings <-chan dispenser.Reading) *DispenserUI {
	return &DispenserUI{device: d, readings: readings}
}

// Run shows the window in a new application and blocks until it is closed or ctx is cancelled
func (ui *DispenserUI) Run(ctx context.Context) {
	application := app.New()
	ui.Show(ctx, application)
	application.Run()
}

// Show opens the window in an already running application
func (ui *DispenserUI) Show(ctx context.Context, application fyne.App) {
	window := application.NewWindow("Dispenser")

	weightText := canvas.NewText(formatWeight(dispenser.Reading{}), nil)
	weightText.TextSize = 32
	weightText.TextStyle = fyne.TextStyle{Bold: true}
	temperatureText := canvas.NewText(formatTemperature(dispenser.Reading{}), nil)
	temperatureText.TextSize = 20

	dispenseTimer := newTimer(false)
	dispenseTimer.Go()

	statusLabel := widget.NewLabel(actionNone.status(0))
	logAccordion, logContent := createLogAccordion()
	log := &commandLog{}

	c := &controllerWrapper{
		device: ui.device,
		onSent: func(a action, ml int, at time.Time) {
			if a == actionDispense {
				dispenseTimer.Set(at)
			}
			text := log.add(fmt.Sprintf("%s %s", at.Format(time.TimeOnly), a.status(ml)))
			statusLabel.SetText(a.status(ml))
			logContent.SetText(text)
		},
	}

	showErr := func(err error) {
		if err != nil {
			dialog.ShowError(err, window)
		}
	}

	tareButton := widget.NewButton("Tare", func() { showErr(c.Tare()) })
	calibrateButton := widget.NewButton("Calibrate", func() {
		dialog.ShowConfirm(
			"Calibrate",
			"Have the reference weight ready and follow the board's display",
			func(ok bool) {
				if ok {
					showErr(c.Calibrate())
				}
			},
			window,
		)
	})

	volumeEntry := widget.NewEntry()
	volumeEntry.SetPlaceHolder("ml")
	volumeEntry.OnSubmitted = func(s string) {
		err := c.Dispense(s)
		if err != nil {
			showErr(err)
			return
		}
		volumeEntry.SetText("")
	}
	dispenseButton := widget.NewButton("Dispense", func() {
		volumeEntry.OnSubmitted(volumeEntry.Text)
	})

	contentContainer := container.NewVBox(
		container.NewHBox(
			container.NewPadded(weightText),
			layout.NewSpacer(),
			container.NewPadded(temperatureText),
		),
		container.NewHBox(
			widget.NewLabel("Since dispense:"),
			container.NewPadded(dispenseTimer.text),
		),
		container.NewGridWithColumns(2, tareButton, calibrateButton),
		container.NewGridWithColumns(2, volumeEntry, dispenseButton),
		statusLabel,
		logAccordion,
	)

	go func() {
		for r := range ui.readings {
			fyne.Do(func() {
				weightText.Text = formatWeight(r)
				weightText.Refresh()
				temperatureText.Text = formatTemperature(r)
				temperatureText.Refresh()
			})
		}
	}()

	go func() {
		<-ctx.Done()
		fyne.Do(func() {
			application.Quit()
		})
	}()

	window.SetOnClosed(func() {
		dispenseTimer.Stop()
		application.Quit()
	})
	window.SetContent(contentContainer)
	window.Resize(fyne.NewSize(320, 240))
	window.Show()
}
