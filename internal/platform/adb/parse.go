package adb

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"privguard/internal/platform"
)

type packageEntry struct {
	Package string
	UID     int
}

// parsePackageList handles `pm list packages [-U]` output:
//
//	package:com.example.app uid:10234
//	package:com.example.other
func parsePackageList(out string) []packageEntry {
	var entries []packageEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "package:") {
			continue
		}
		rest := strings.TrimPrefix(line, "package:")
		entry := packageEntry{}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		entry.Package = fields[0]
		for _, f := range fields[1:] {
			if v, ok := strings.CutPrefix(f, "uid:"); ok {
				if uid, err := strconv.Atoi(v); err == nil {
					entry.UID = uid
				}
			}
		}
		if entry.Package != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// parsePermissionStates pulls requested permissions and their grant flags
// out of a `dumpsys package <pkg>` dump. Requested permissions appear as a
// bare list; grant flags come from the install/runtime permission sections:
//
//	requested permissions:
//	  android.permission.CAMERA
//	install permissions:
//	  android.permission.INTERNET: granted=true
//	runtime permissions:
//	  android.permission.CAMERA: granted=false, flags=[ USER_SENSITIVE_WHEN_GRANTED ]
func parsePermissionStates(dump string) []platform.PermissionState {
	requested := make([]string, 0, 8)
	granted := make(map[string]bool)
	section := ""
	for _, raw := range strings.Split(dump, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "requested permissions:"):
			section = "requested"
			continue
		case strings.HasPrefix(line, "install permissions:"),
			strings.HasPrefix(line, "runtime permissions:"):
			section = "granted"
			continue
		case strings.HasSuffix(line, ":") && !strings.Contains(line, ".permission."):
			// Any other labelled block ends the current section.
			section = ""
			continue
		}
		switch section {
		case "requested":
			if strings.HasPrefix(line, "android.") || strings.Contains(line, ".permission.") {
				requested = append(requested, strings.Fields(line)[0])
			}
		case "granted":
			name, rest, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if strings.Contains(rest, "granted=true") {
				granted[name] = true
			}
		}
	}
	out := make([]platform.PermissionState, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, platform.PermissionState{Name: name, Granted: granted[name]})
	}
	return out
}

var appOpsTimeRE = regexp.MustCompile(`(?:^|[;\s])time=\+([0-9dhms.]+)\s+ago`)

// parseAppOpsTime extracts the last-access time from `appops get` output:
//
//	CAMERA: allow; time=+2m13s452ms ago; duration=+1s10ms
//
// Ops that were never exercised ("No operations.") or are denied yield no
// timestamp.
func parseAppOpsTime(out string, now time.Time) (time.Time, bool) {
	for _, line := range strings.Split(out, "\n") {
		m := appOpsTimeRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d, err := parseAndroidDuration(m[1])
		if err != nil {
			continue
		}
		return now.Add(-d), true
	}
	return time.Time{}, false
}

// parseAndroidDuration parses android's relative duration format, which is
// Go's with an optional leading days component: 1d2h3m4s567ms.
func parseAndroidDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var days int64
	if i := strings.IndexByte(s, 'd'); i > 0 && !strings.ContainsAny(s[:i], "hms.") {
		v, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, err
		}
		days = v
		s = s[i+1:]
	}
	var rest time.Duration
	if s != "" {
		v, err := time.ParseDuration(s)
		if err != nil {
			return 0, err
		}
		rest = v
	}
	return time.Duration(days)*24*time.Hour + rest, nil
}

var (
	usagePkgRE  = regexp.MustCompile(`package=([\w.]+)`)
	usageLastRE = regexp.MustCompile(`lastTimeUsed="?([^",]+)"?`)
)

// parseUsageStats pulls per-package last-used timestamps out of a
// `dumpsys usagestats` dump. Lines look like:
//
//	package=com.example.app totalTimeUsed="1:23:45" lastTimeUsed="2026-08-28 10:11:12"
//
// Later entries for the same package win if newer.
func parseUsageStats(out string) map[string]time.Time {
	result := make(map[string]time.Time)
	for _, line := range strings.Split(out, "\n") {
		pkgMatch := usagePkgRE.FindStringSubmatch(line)
		lastMatch := usageLastRE.FindStringSubmatch(line)
		if pkgMatch == nil || lastMatch == nil {
			continue
		}
		ts, err := parseTimestamp(strings.TrimSpace(lastMatch[1]))
		if err != nil {
			continue
		}
		pkg := pkgMatch[1]
		if prev, ok := result[pkg]; !ok || ts.After(prev) {
			result[pkg] = ts
		}
	}
	return result
}

var resumedRE = regexp.MustCompile(`(?:mResumedActivity|topResumedActivity).*?\s([\w.]+)/`)

// parseResumedPackage finds the currently resumed activity's package in a
// `dumpsys activity activities` dump:
//
//	mResumedActivity: ActivityRecord{1a2b3c u0 com.example.app/.MainActivity t47}
func parseResumedPackage(out string) string {
	m := resumedRE.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

var cameraClientRE = regexp.MustCompile(`Client package(?: name)?:\s*([\w.]+)`)

// parseCameraClients lists packages holding an open camera device per
// `dumpsys media.camera`. An open device with no identifiable client is
// reported as UNKNOWN.
func parseCameraClients(out string) []string {
	clients := cameraClientRE.FindAllStringSubmatch(out, -1)
	var pkgs []string
	for _, m := range clients {
		pkgs = append(pkgs, m[1])
	}
	if len(pkgs) == 0 && strings.Contains(out, "is open") {
		pkgs = append(pkgs, "UNKNOWN")
	}
	return pkgs
}

var activeTracksRE = regexp.MustCompile(`(?i)(\d+)\s+active tracks?`)

// parseActiveRecordTracks counts active record tracks across the input
// threads of a `dumpsys media.audio_flinger` dump. Output (playback)
// threads also report active tracks and must not be counted.
func parseActiveRecordTracks(out string) int {
	total := 0
	inInput := false
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "Input thread"):
			inInput = true
		case strings.Contains(line, "Output thread"):
			inInput = false
		}
		if !inInput {
			continue
		}
		if m := activeTracksRE.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				total += n
			}
		}
	}
	return total
}

var gpsEnabledRE = regexp.MustCompile(`(?i)gps[^\n]*enabled[=: ]+true`)

func parseGPSEnabled(out string) bool {
	return gpsEnabledRE.MatchString(out)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
}

// parseTimestamp accepts the datetime forms seen in usagestats dumps plus
// raw unix epochs (seconds or milliseconds).
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		if len(value) >= 13 {
			return time.UnixMilli(v).UTC(), nil
		}
		return time.Unix(v, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unsupported timestamp format: " + value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}
