package adb

import (
	"testing"
	"time"
)

func TestParsePackageList(t *testing.T) {
	out := `package:com.example.app uid:10234
package:com.example.other uid:10240
package:com.no.uid
`
	entries := parsePackageList(out)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Package != "com.example.app" || entries[0].UID != 10234 {
		t.Fatalf("first entry: %+v", entries[0])
	}
	if entries[2].Package != "com.no.uid" || entries[2].UID != 0 {
		t.Fatalf("uid-less entry: %+v", entries[2])
	}
}

func TestParsePermissionStates(t *testing.T) {
	dump := `Packages:
  Package [com.example.app] (1a2b3c):
    userId=10234
    requested permissions:
      android.permission.CAMERA
      android.permission.INTERNET
      android.permission.READ_CONTACTS
    install permissions:
      android.permission.INTERNET: granted=true
    User 0: ceDataInode=1234
    runtime permissions:
      android.permission.CAMERA: granted=true, flags=[ USER_SENSITIVE_WHEN_GRANTED ]
      android.permission.READ_CONTACTS: granted=false, flags=[ USER_SET ]
`
	states := parsePermissionStates(dump)
	if len(states) != 3 {
		t.Fatalf("got %d states, want 3: %+v", len(states), states)
	}
	want := map[string]bool{
		"android.permission.CAMERA":        true,
		"android.permission.INTERNET":      true,
		"android.permission.READ_CONTACTS": false,
	}
	for _, st := range states {
		granted, ok := want[st.Name]
		if !ok {
			t.Fatalf("unexpected permission: %s", st.Name)
		}
		if st.Granted != granted {
			t.Fatalf("%s: granted=%v, want %v", st.Name, st.Granted, granted)
		}
	}
}

func TestParseAppOpsTime(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	out := "CAMERA: allow; time=+2m13s ago; duration=+1s10ms\n"
	ts, ok := parseAppOpsTime(out, now)
	if !ok {
		t.Fatalf("expected a timestamp")
	}
	want := now.Add(-(2*time.Minute + 13*time.Second))
	if !ts.Equal(want) {
		t.Fatalf("got %v, want %v", ts, want)
	}
}

func TestParseAppOpsTimeNoOperations(t *testing.T) {
	if _, ok := parseAppOpsTime("No operations.\n", time.Now()); ok {
		t.Fatalf("expected no timestamp")
	}
	if _, ok := parseAppOpsTime("RECORD_AUDIO: ignore\n", time.Now()); ok {
		t.Fatalf("expected no timestamp for denied op")
	}
}

func TestParseAndroidDurationWithDays(t *testing.T) {
	d, err := parseAndroidDuration("1d2h3m4s")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := 26*time.Hour + 3*time.Minute + 4*time.Second
	if d != want {
		t.Fatalf("got %v, want %v", d, want)
	}
}

func TestParseUsageStats(t *testing.T) {
	out := `In-memory daily stats
  package=com.example.app totalTimeUsed="1:23:45" lastTimeUsed="2026-08-28 10:11:12"
  package=com.example.old totalTimeUsed="0:01:00" lastTimeUsed="2026-07-01 09:00:00"
  package=com.example.app totalTimeUsed="0:00:10" lastTimeUsed="2026-08-27 08:00:00"
`
	stats := parseUsageStats(out)
	if len(stats) != 2 {
		t.Fatalf("got %d packages, want 2", len(stats))
	}
	want := time.Date(2026, 8, 28, 10, 11, 12, 0, time.Local)
	if !stats["com.example.app"].Equal(want) {
		t.Fatalf("newest entry should win: got %v", stats["com.example.app"])
	}
}

func TestParseResumedPackage(t *testing.T) {
	out := `  mResumedActivity: ActivityRecord{1a2b3c u0 com.example.app/.MainActivity t47}`
	if pkg := parseResumedPackage(out); pkg != "com.example.app" {
		t.Fatalf("got %q", pkg)
	}
	if pkg := parseResumedPackage("nothing resumed here"); pkg != "" {
		t.Fatalf("expected empty, got %q", pkg)
	}
}

func TestParseCameraClients(t *testing.T) {
	out := `== Camera service status ==
Device 0 is open. Client instance dump:
  Client package: com.example.camera
`
	pkgs := parseCameraClients(out)
	if len(pkgs) != 1 || pkgs[0] != "com.example.camera" {
		t.Fatalf("got %v", pkgs)
	}
	if pkgs := parseCameraClients("Device 1 is open.\n"); len(pkgs) != 1 || pkgs[0] != "UNKNOWN" {
		t.Fatalf("open device without client should report UNKNOWN, got %v", pkgs)
	}
	if pkgs := parseCameraClients("No active camera devices\n"); len(pkgs) != 0 {
		t.Fatalf("idle camera should report no clients, got %v", pkgs)
	}
}

func TestParseActiveRecordTracks(t *testing.T) {
	out := `Output thread 0xab00 type 0 (MIXER):
  2 Active tracks
Input thread 0xcd00 type 1 (RECORD):
  1 Active track
`
	if n := parseActiveRecordTracks(out); n != 1 {
		t.Fatalf("got %d active record tracks, want 1 (output threads must not count)", n)
	}
}

func TestParseGPSEnabled(t *testing.T) {
	if !parseGPSEnabled("  gps provider: enabled=true\n") {
		t.Fatalf("expected gps enabled")
	}
	if parseGPSEnabled("  gps provider: enabled=false\n") {
		t.Fatalf("expected gps disabled")
	}
}
