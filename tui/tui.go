package tui

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/dvbtuner/config"
	"github.com/jrwynneiii/dvbtuner/demux"
	"github.com/jrwynneiii/dvbtuner/device"
	"github.com/navidys/tvxwidgets"
	"github.com/rivo/tview"
	"gonum.org/v1/gonum/stat"
)

// Sampler turns packet counters read at a fixed interval into rates and
// keeps a bounded history of the overall rate.
type Sampler struct {
	interval  time.Duration
	size      int
	history   []float64
	lastTotal uint64
	lastPID   map[int]uint64
}

func NewSampler(interval time.Duration, size int) *Sampler {
	return &Sampler{interval: interval, size: size, lastPID: map[int]uint64{}}
}

// Add records one sample: the total packet count and the count of every
// monitored PID, in the order they should be shown.
func (s *Sampler) Add(total uint64, pids []int, count func(pid int) uint64) []PidRow {
	seconds := s.interval.Seconds()

	s.history = append(s.history, float64(total-s.lastTotal)/seconds)
	if len(s.history) > s.size {
		s.history = s.history[len(s.history)-s.size:]
	}
	s.lastTotal = total

	rows := make([]PidRow, 0, len(pids))
	seen := make(map[int]uint64, len(pids))
	for _, pid := range pids {
		n := count(pid)
		rows = append(rows, PidRow{PID: pid, Packets: n, Rate: float64(n-s.lastPID[pid]) / seconds})
		seen[pid] = n
	}
	s.lastPID = seen
	return rows
}

func (s *Sampler) History() []float64 {
	return s.history
}

func (s *Sampler) Average() float64 {
	if len(s.history) == 0 {
		return 0
	}
	return stat.Mean(s.history, nil)
}

var LogOut *tview.TextView

// redirectLog sends the default logger to w and returns a func that puts
// the previous default logger back.
func redirectLog(w io.Writer) func() {
	prev := log.Default()
	logger := log.NewWithOptions(w, log.Options{
		Level:           prev.GetLevel(),
		Prefix:          prev.GetPrefix(),
		ReportTimestamp: true,
	})
	log.SetDefault(logger)
	return func() {
		log.SetDefault(prev)
	}
}

// StartUI shows the monitor for dev until ctx is done or the user quits.
// counter must be registered as filter of the PIDs to show.
func StartUI(ctx context.Context, dev *device.Device, counter *demux.Counter, tuiConf config.TuiConf) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tview.NewApplication()
	refresh := time.Duration(tuiConf.RefreshMs) * time.Millisecond

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	pidData := &PidTableData{}
	statusData := &StatusTableData{}
	pidStats := tview.NewTable().SetContent(pidData)
	statusTable := tview.NewTable().SetContent(statusData)

	ratePlot := tvxwidgets.NewPlot()
	ratePlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue})
	ratePlot.SetMarker(tvxwidgets.PlotMarkerBraille)

	signalGauge := tvxwidgets.NewUtilModeGauge()
	signalGauge.SetLabel("Signal Strength:   ")
	signalGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	signalGauge.SetWarnPercentage(99)
	signalGauge.SetCritPercentage(100)
	signalGauge.SetEmptyColor(tcell.ColorBlack)
	signalGauge.SetBorder(false)

	snrGauge := tvxwidgets.NewUtilModeGauge()
	snrGauge.SetLabel("Signal/Noise:      ")
	snrGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	snrGauge.SetWarnPercentage(99)
	snrGauge.SetCritPercentage(100)
	snrGauge.SetEmptyColor(tcell.ColorBlack)
	snrGauge.SetBorder(false)

	progressGauge := tvxwidgets.NewUtilModeGauge()
	progressGauge.SetLabel("Lock Timeout:      ")
	progressGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	progressGauge.SetWarnPercentage(60)
	progressGauge.SetCritPercentage(90)
	progressGauge.SetEmptyColor(tcell.ColorBlack)
	progressGauge.SetBorder(false)

	gaugeBox := tview.NewFlex()
	gaugeBox.SetDirection(tview.FlexRow)
	gaugeBox.AddItem(signalGauge, 0, 1, false)
	gaugeBox.AddItem(snrGauge, 0, 1, false)
	gaugeBox.AddItem(progressGauge, 0, 1, false)
	gaugeBox.SetTitle("Frontend")
	gaugeBox.SetBorder(true)

	LogOut.SetChangedFunc(func() {
		LogOut.ScrollToEnd()
		app.Draw()
	})

	LogOut.SetBorder(true).SetTitle("Log Output")
	if tuiConf.EnableLogOutput {
		defer redirectLog(LogOut)()
	}
	pidStats.SetSelectable(false, false).SetBorder(true).SetTitle("Per-PID Stats")
	statusTable.SetSelectable(false, false).SetBorder(false)

	deviceStatus := tview.NewFlex().SetDirection(tview.FlexRow)
	deviceStatus.AddItem(tview.NewBox(), 0, 1, false)
	deviceStatus.AddItem(statusTable, 0, 2, false)
	deviceStatus.AddItem(tview.NewBox(), 0, 1, false)
	deviceStatus.SetBorder(true)
	deviceStatus.SetTitle("Device Status")

	ratePlot.SetBorder(true)
	ratePlot.SetTitle("Packets/s")

	page := tview.NewFlex().SetDirection(tview.FlexColumn)

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(pidStats, 0, 3, false)
	leftCol.AddItem(deviceStatus, 0, 2, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(gaugeBox, 0, 2, false)
	rightCol.AddItem(ratePlot, 0, 3, false)
	if tuiConf.EnableLogOutput {
		rightCol.AddItem(LogOut, 0, 2, false)
	}

	page.AddItem(leftCol, 0, 2, false)
	page.AddItem(rightCol, 0, 5, false)

	sampler := NewSampler(refresh, 120)

	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			stats := dev.Stats()
			rows := sampler.Add(stats.PacketsDispatched, dev.PIDs(), counter.Count)
			signal, _ := dev.Signal()
			snr, _ := dev.SNR()
			progress := dev.Progress()
			status := Status{
				State:           dev.State(),
				Frontend:        dev.FrontendName(),
				PacketsReceived: stats.PacketsDispatched,
				TransportErrors: stats.TransportErrors,
				Blocks:          stats.Blocks,
				AverageRate:     sampler.Average(),
			}
			history := append([]float64(nil), sampler.History()...)

			app.QueueUpdateDraw(func() {
				pidData.rows = rows
				statusData.status = status
				signalGauge.SetValue(float64(signal))
				snrGauge.SetValue(float64(snr))
				progressGauge.SetValue(progress * 100)
				if len(history) > 1 {
					ratePlot.SetData([][]float64{history})
				}
			})
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		log.Fatalf("Could not start UI: %v", err)
	}
}
