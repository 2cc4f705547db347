// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/radarcns/sensorlink/lib/record"
	"github.com/radarcns/sensorlink/lib/schema/device"
)

var (
	labelStyle = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)

	statusStyles = map[device.Status]lipgloss.Style{
		device.Disconnected:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		device.Ready:         lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		device.Connecting:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		device.Connected:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		device.Disconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

func renderDeviceStatus(status device.Status) string {
	style, ok := statusStyles[status]
	if !ok {
		return status.String()
	}
	return style.Render(status.String())
}

type statusView struct {
	name         string
	remote       bool
	snapshot     device.Snapshot
	serverStatus device.ServerStatus
}

// reading formats a measurement, or "-" when the device has not
// reported it.
func reading(value float32, unit string) string {
	if math.IsNaN(float64(value)) {
		return faintStyle.Render("-")
	}
	return fmt.Sprintf("%.2f%s", value, unit)
}

func renderStatus(view statusView) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	title := view.snapshot.Kind.String()
	if view.name != "" {
		title = view.name + " (" + title + ")"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteByte('\n')

	location := "local"
	if view.remote {
		location = "remote"
	}
	row("producer", location)
	row("status", renderDeviceStatus(view.snapshot.Status))
	row("upload", view.serverStatus.String())

	snapshot := view.snapshot
	if snapshot.HasAcceleration() {
		a := snapshot.Acceleration
		row("acceleration", fmt.Sprintf("%s %s %s", reading(a[0], ""), reading(a[1], ""), reading(a[2], "")))
	}
	row("battery", reading(snapshot.BatteryLevel*100, "%"))
	switch snapshot.Kind {
	case device.Wearable:
		row("charging", snapshot.BatteryCharging.String())
		row("plugged", snapshot.BatteryPlugged.String())
		row("heart rate", reading(snapshot.HeartRate, " bpm"))
		row("heart rate filtered", reading(snapshot.HeartRateFiltered, " bpm"))
	case device.Phone:
		row("light", reading(snapshot.Light, " lx"))
	}
	return b.String()
}

func renderRecords(codec record.Codec, entries []record.Entry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(codec.Name()))
	b.WriteString(faintStyle.Render(fmt.Sprintf("  schema %s  %d records", codec.Fingerprint(), len(entries))))
	b.WriteByte('\n')
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s %+v %+v\n", labelStyle.Render(fmt.Sprintf("#%d", entry.Offset)), entry.Key, entry.Value)
	}
	return b.String()
}

func renderChange(at time.Time, change statusChange) string {
	line := faintStyle.Render(at.Format(time.TimeOnly)) + " " + renderDeviceStatus(change.status)
	if change.name != "" {
		line += " " + change.name
	}
	return line
}
