package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/logging"
)

type fakeDevice struct {
	sent []int
}

func (d *fakeDevice) Tare() error           { return d.send(dispenser.CommandTare) }
func (d *fakeDevice) Calibrate() error      { return d.send(dispenser.CommandCalibrate) }
func (d *fakeDevice) Dispense(ml int) error { return d.send(ml) }
func (d *fakeDevice) Close() error          { return nil }

func (d *fakeDevice) Readings() <-chan dispenser.Reading {
	return nil
}

func (d *fakeDevice) send(v int) error {
	d.sent = append(d.sent, v)
	return nil
}

func TestSendLine(t *testing.T) {
	d := &fakeDevice{}

	require.NoError(t, sendLine(d, "-1"))
	require.NoError(t, sendLine(d, " -2 "))
	require.NoError(t, sendLine(d, "250"))
	require.NoError(t, sendLine(d, ""))
	assert.Error(t, sendLine(d, "tare"))

	assert.Equal(t, []int{-1, -2, 250}, d.sent)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Mock.TimeScale = 1000
	return cfg
}

func TestStartRecordsHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := start(ctx, testConfig(t), options{mock: true, sessionName: "test"}, logging.NewDefaultLogger(false))
	require.NoError(t, err)

	require.NoError(t, s.device.Tare())
	require.NoError(t, s.device.Dispense(5))

	current, ok := s.store.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, "test", current.Name)

	cmds, err := s.store.Commands(ctx, current.ID)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "tare", cmds[0].Name)
	assert.Equal(t, "dispense", cmds[1].Name)
	assert.Equal(t, 5, cmds[1].Value)

	assert.Nil(t, s.api)
	assert.Nil(t, s.chart)
	assert.NoError(t, s.close())
}

func TestRunCLI(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Path = ""

	var out bytes.Buffer
	err := runCLI(cfg, options{mock: true, sessionName: "cli"}, logging.NewDefaultLogger(false), strings.NewReader("-1\nnope\n"), &out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "-1: "))
}
