package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// idleShutdown is how long the Python service may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// scriptName is the landmark service shipped next to the binary.
const scriptName = "hand_landmarks_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames are written as length-prefixed JPEG; each reply is one JSON line.
// A service that dies is restarted on the next frame.
type MediaPipeDetector struct {
	config Config
	script string
	log    logrus.FieldLogger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
	starts    int
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log logrus.FieldLogger) (*MediaPipeDetector, error) {
	script := findFile(scriptCandidates())
	if script == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MediaPipeDetector{
		config: config,
		script: script,
		log:    log.WithField("component", "mediapipe"),
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.shutdown()
		return nil, err
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	hands, err := decodeReply(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	python := findFile(pythonCandidates())
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = &lineLogger{log: d.log}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.starts++

	entry := d.log.WithFields(logrus.Fields{"python": python, "pid": cmd.Process.Pid})
	if d.starts > 1 {
		entry.WithField("restarts", d.starts-1).Warn("mediapipe service restarted")
	} else {
		entry.Info("mediapipe service started")
	}
	return nil
}

// lineLogger logs each complete line written to it at debug.
type lineLogger struct {
	log     logrus.FieldLogger
	pending []byte
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.pending[:i]); len(line) > 0 {
			w.log.Debug(string(line))
		}
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (d *MediaPipeDetector) shutdown() error {
	if d.cmd == nil {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.log.Debug("mediapipe service stopped")
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// writeFrame sends one JPEG as a 4-byte big-endian length and the data.
func writeFrame(w io.Writer, jpeg []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(jpeg)))

	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// reply is one JSON line from the Python service.
type reply struct {
	Hands []HandLandmarks `json:"hands"`
	Error string          `json:"error"`
}

// decodeReply parses a service reply. Short point lists are passed through
// as-is; the cursor engine treats them as "no hand".
func decodeReply(line []byte) ([]HandLandmarks, error) {
	var r reply
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", r.Error)
	}

	for i := range r.Hands {
		if len(r.Hands[i].Points) > NumLandmarks {
			r.Hands[i].Points = r.Hands[i].Points[:NumLandmarks]
		}
	}
	if r.Hands == nil {
		r.Hands = []HandLandmarks{}
	}
	return r.Hands, nil
}

func scriptCandidates() []string {
	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
	}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "scripts", scriptName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mirror", "scripts", scriptName))
	}
	return candidates
}

// pythonCandidates lists virtual environment interpreters, nearest first.
func pythonCandidates() []string {
	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
	}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "venv", "bin", "python"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".mirror", "venv", "bin", "python"))
	}
	return candidates
}

// findFile returns the absolute path of the first candidate that exists.
func findFile(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
