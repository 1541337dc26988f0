package device

import (
	"regexp"
	"strings"
)

// ClassifierConfig lists the package names that distinguish idle from
// standby. Launcher and screensaver packages vary across Fire OS
// versions, so they are data, not policy.
type ClassifierConfig struct {
	LauncherPackages    []string
	ScreensaverPackages []string
}

// Probes holds the raw output of the three dumpsys queries a
// classification is derived from. All three are gathered in one pass
// under the device session lock so they describe the same moment.
type Probes struct {
	Power        string // dumpsys power
	Window       string // dumpsys window
	MediaSession string // dumpsys media_session
}

// Classifier turns raw probe output into a State.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given package lists.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify applies the tie-break order, first match wins:
//
//  1. screen off            -> off
//  2. media session playing -> play
//  3. media session paused  -> pause
//  4. launcher/screensaver focused -> idle
//  5. otherwise             -> standby
//
// Playback outranks launcher detection: a video playing full-screen over
// the launcher process must classify as play, not idle. The disconnected
// state is decided by the caller (a probe that cannot be gathered never
// reaches Classify).
func (c *Classifier) Classify(p Probes) State {
	if !screenOn(p.Power) {
		return StateOff
	}

	switch playbackState(p.MediaSession) {
	case playbackPlaying:
		return StatePlay
	case playbackPaused:
		return StatePause
	}

	pkg := focusedPackage(p.Window)
	if c.isLauncher(pkg) || c.isScreensaver(pkg) {
		return StateIdle
	}

	return StateStandby
}

func (c *Classifier) isLauncher(pkg string) bool {
	for _, p := range c.cfg.LauncherPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

func (c *Classifier) isScreensaver(pkg string) bool {
	for _, p := range c.cfg.ScreensaverPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

// Playback states as they appear in PlaybackState dumps.
// Android constants: STATE_PLAYING=3, STATE_PAUSED=2.
type playback int

const (
	playbackNone playback = iota
	playbackPlaying
	playbackPaused
)

var (
	// Older Fire OS prints mScreenOn=true, newer prints a Display Power line.
	screenOnPattern = regexp.MustCompile(`mScreenOn=true|Display Power: state=ON`)

	// state=3 / state=2 inside a PlaybackState{...} dump line.
	playbackStatePattern = regexp.MustCompile(`state=(\d+)`)

	// mFocusedApp=... ActivityRecord{... u0 com.foo.bar/.Activity ...}
	// mCurrentFocus=Window{... u0 com.foo.bar/com.foo.bar.Activity}
	focusedAppPattern = regexp.MustCompile(`m(?:FocusedApp|CurrentFocus)=.*?\s([A-Za-z][\w.]*)/[\w.$]+`)
)

// screenOn reports whether the dumpsys power output says the display is on.
func screenOn(power string) bool {
	return screenOnPattern.MatchString(power)
}

// playbackState extracts the playback state of the active media session.
func playbackState(mediaSession string) playback {
	for _, line := range strings.Split(mediaSession, "\n") {
		if !strings.Contains(line, "state=PlaybackState") && !strings.Contains(line, "PlaybackState {") {
			continue
		}
		m := playbackStatePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "3":
			return playbackPlaying
		case "2":
			return playbackPaused
		}
	}
	return playbackNone
}

// focusedPackage extracts the package name of the focused app from the
// dumpsys window output, or "" when no focus line is present.
func focusedPackage(window string) string {
	m := focusedAppPattern.FindStringSubmatch(window)
	if m == nil {
		return ""
	}
	return m[1]
}
