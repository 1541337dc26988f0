package api

import (
	"context"
	"net/http"
	"testing"
)

func appsTestServer(t *testing.T) (*Server, *fakeConn) {
	t.Helper()

	srv, registry, dialer := testServer(t)
	if err := registry.Add(context.Background(), "living-room", testHost); err != nil {
		t.Fatalf("Add: %v", err)
	}

	conn := dialer.conn(testHost)
	conn.set("ps", psDump)
	conn.set("dumpsys window", windowPlayer)
	return srv, conn
}

func TestRunningApps(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/running", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		RunningApps []string `json:"running_apps"`
	}
	decodeBody(t, rec, &body)

	want := []string{"com.netflix.ninja", "com.amazon.tv.launcher"}
	if len(body.RunningApps) != len(want) {
		t.Fatalf("running_apps = %v, want %v", body.RunningApps, want)
	}
	for i := range want {
		if body.RunningApps[i] != want[i] {
			t.Errorf("running_apps[%d] = %q, want %q", i, body.RunningApps[i], want[i])
		}
	}
}

func TestRunningApps_UnknownDevice404(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/ghost/apps/running", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAppState_Foreground(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/com.netflix.ninja/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "foreground" {
		t.Errorf("status = %v, want foreground", body["status"])
	}
}

func TestAppState_Background(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/com.amazon.tv.launcher/state", "")

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "background" {
		t.Errorf("status = %v, want background", body["status"])
	}
}

func TestAppState_Stopped(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/org.xbmc.kodi/state", "")

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "stopped" {
		t.Errorf("status = %v, want stopped", body["status"])
	}
}

func TestAppState_DeprecatedAlias(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/state/com.netflix.ninja", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deprecated alias status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "foreground" {
		t.Errorf("status = %v, want foreground", body["status"])
	}
}

func TestAppState_InvalidAppID400(t *testing.T) {
	srv, _ := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/1badapp/state", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStartApp(t *testing.T) {
	srv, conn := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/com.netflix.ninja/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}

	found := false
	for _, cmd := range conn.sent() {
		if cmd == "monkey -p com.netflix.ninja -c android.intent.category.LAUNCHER 1" {
			found = true
		}
	}
	if !found {
		t.Errorf("launcher intent not sent; commands = %v", conn.sent())
	}
}

func TestStopApp(t *testing.T) {
	srv, conn := appsTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/devices/living-room/apps/com.netflix.ninja/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	found := false
	for _, cmd := range conn.sent() {
		if cmd == "am force-stop com.netflix.ninja" {
			found = true
		}
	}
	if !found {
		t.Errorf("force-stop not sent; commands = %v", conn.sent())
	}
}
