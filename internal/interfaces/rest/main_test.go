package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pot-code/lesson-tutor/internal/catalog"
	"github.com/pot-code/lesson-tutor/internal/chat"
	infra "github.com/pot-code/lesson-tutor/internal/infrastructure"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
	"github.com/pot-code/lesson-tutor/internal/lesson"
	"github.com/pot-code/lesson-tutor/internal/user"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testTokenName = "tutor_session"

type stubCompleter struct {
	outcome chat.Outcome
}

func (s *stubCompleter) Complete(ctx context.Context, message string) chat.Outcome {
	return s.outcome
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	conn   driver.ITransactionalDB
	hub    *chat.Hub
}

func newTestEnv(t *testing.T, completer chat.Completer) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	option := new(infra.AppConfig)
	option.AppID = "tutor-test"
	option.Env = infra.EnvProduction
	option.SessionTimeout = time.Hour
	option.SessionRefresh = 5 * time.Minute
	option.RequestTimeout = 5 * time.Second
	option.Security.IDLength = 21
	option.Security.JWTMethod = "HS256"
	option.Security.JWTSecret = "test-secret"
	option.Security.TokenName = testTokenName
	option.Security.BcryptCost = bcrypt.MinCost

	conn, err := driver.GetDBConnection(&driver.DBConfig{
		Driver:  driver.DriverSQLite,
		Schema:  filepath.Join(t.TempDir(), "users.db"),
		MaxConn: 1,
	})
	if err != nil {
		t.Fatalf("GetDBConnection: %v", err)
	}
	if err := driver.Migrate(ctx, conn, driver.DriverSQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	lessons := catalog.Default()
	users := user.NewUserUseCase(user.NewUserRepository(conn), lessons, bcrypt.MinCost)
	hub := chat.NewHub(zap.NewNop())
	hub.SetDispatcher(chat.NewRelay(completer, hub))
	stopped := make(chan struct{})
	go func() {
		hub.RunWithContext(ctx)
		close(stopped)
	}()

	app, err := NewApp(&AppContext{
		Option:        option,
		Conn:          conn,
		KVStore:       driver.NewMemoryKV(),
		UserUseCase:   users,
		LessonUseCase: lesson.NewLessonUseCase(lessons, users),
		Hub:           hub,
		Logger:        zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	server := httptest.NewServer(app)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-stopped
		conn.Close(context.Background())
	})
	return &testEnv{server, client, conn, hub}
}

func (e *testEnv) postForm(t *testing.T, path string, values url.Values) *http.Response {
	t.Helper()
	res, err := e.client.PostForm(e.server.URL+path, values)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return res
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return res
}

func (e *testEnv) completeLesson(t *testing.T, body string) *http.Response {
	t.Helper()
	res, err := e.client.Post(e.server.URL+"/complete_lesson", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /complete_lesson: %v", err)
	}
	return res
}

func (e *testEnv) signUpAndIn(t *testing.T, username, password string) {
	t.Helper()
	creds := url.Values{"username": {username}, "password": {password}}
	expectRedirect(t, e.postForm(t, "/register", creds), "/login")
	expectRedirect(t, e.postForm(t, "/login", creds), "/dashboard")
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func decodeBody(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(readBody(t, res)), v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectRedirect(t *testing.T, res *http.Response, location string) {
	t.Helper()
	res.Body.Close()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("%s %s status = %d, want 302", res.Request.Method, res.Request.URL.Path, res.StatusCode)
	}
	if got := res.Header.Get("Location"); got != location {
		t.Fatalf("%s %s location = %q, want %q", res.Request.Method, res.Request.URL.Path, got, location)
	}
}

func expectJSONError(t *testing.T, res *http.Response, status int, msg string) {
	t.Helper()
	if res.StatusCode != status {
		t.Fatalf("status = %d, want %d", res.StatusCode, status)
	}
	var body map[string]string
	decodeBody(t, res, &body)
	if !reflect.DeepEqual(body, map[string]string{"error": msg}) {
		t.Fatalf("body = %v, want error %q", body, msg)
	}
}

func sessionCookie(e *testEnv) *http.Cookie {
	u, _ := url.Parse(e.server.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == testTokenName {
			return c
		}
	}
	return nil
}

func TestUnauthenticated(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})

	expectJSONError(t, e.completeLesson(t, `{"lesson":"Math Basics"}`), http.StatusUnauthorized, "Unauthorized")
	expectJSONError(t, e.get(t, "/get_recommendations"), http.StatusUnauthorized, "Unauthorized")
	expectRedirect(t, e.get(t, "/dashboard"), "/login")

	res := e.get(t, "/")
	if body := readBody(t, res); res.StatusCode != http.StatusOK || !strings.Contains(body, "AI Tutor") {
		t.Fatalf("GET / = %d %q", res.StatusCode, body)
	}
}

func TestLessonFlow(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	e.signUpAndIn(t, "alice", "secret123")

	res := e.get(t, "/dashboard")
	if body := readBody(t, res); res.StatusCode != http.StatusOK || !strings.Contains(body, "Login successful!") || !strings.Contains(body, "alice") {
		t.Fatalf("GET /dashboard = %d %q", res.StatusCode, body)
	}

	res = e.completeLesson(t, `{"lesson":"Math Basics"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", res.StatusCode)
	}
	var completed struct {
		Message  string   `json:"message"`
		Progress []string `json:"progress"`
	}
	decodeBody(t, res, &completed)
	if completed.Message != "Lesson 'Math Basics' marked as completed!" {
		t.Errorf("message = %q", completed.Message)
	}
	if !reflect.DeepEqual(completed.Progress, []string{"Math Basics"}) {
		t.Errorf("progress = %v", completed.Progress)
	}

	// completing twice keeps a single entry
	res = e.completeLesson(t, `{"lesson":"Math Basics"}`)
	decodeBody(t, res, &completed)
	if !reflect.DeepEqual(completed.Progress, []string{"Math Basics"}) {
		t.Errorf("progress after repeat = %v", completed.Progress)
	}

	var recs struct {
		Recommendations []string `json:"recommendations"`
	}
	decodeBody(t, e.get(t, "/get_recommendations"), &recs)
	if len(recs.Recommendations) != 3 {
		t.Fatalf("recommendations = %v, want 3", recs.Recommendations)
	}
	rank := make(map[string]int)
	for i, r := range recs.Recommendations {
		if r == "Math Basics" {
			t.Fatalf("recommendations include a completed lesson: %v", recs.Recommendations)
		}
		rank[r] = i
	}
	if i, ok := rank["Blockchain"]; ok && i < rank["Advanced Math"] {
		t.Errorf("Blockchain ranked above Advanced Math: %v", recs.Recommendations)
	}

	expectJSONError(t, e.completeLesson(t, `{"lesson":"Cooking"}`), http.StatusBadRequest, "Invalid lesson")
	expectJSONError(t, e.completeLesson(t, `{}`), http.StatusBadRequest, "Invalid lesson")
}

func TestRegister_Duplicate(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	creds := url.Values{"username": {"alice"}, "password": {"secret123"}}
	expectRedirect(t, e.postForm(t, "/register", creds), "/login")
	expectRedirect(t, e.postForm(t, "/register", creds), "/register")

	res := e.get(t, "/register")
	if body := readBody(t, res); !strings.Contains(body, "User already exists!") {
		t.Fatalf("register page misses the duplicate flash: %q", body)
	}
	// flashes are shown once
	if body := readBody(t, e.get(t, "/register")); strings.Contains(body, "User already exists!") {
		t.Fatal("flash shown twice")
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	res := e.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {strings.Repeat("p", 73)}})
	body := readBody(t, res)
	if res.StatusCode != http.StatusBadRequest || !strings.Contains(body, "at most 72 bytes") {
		t.Fatalf("register = %d %q", res.StatusCode, body)
	}
	res = e.postForm(t, "/login", url.Values{"username": {"alice"}, "password": {strings.Repeat("p", 73)}})
	if body := readBody(t, res); !strings.Contains(body, "Invalid username or password!") {
		t.Fatalf("login with the rejected account = %d %q", res.StatusCode, body)
	}
}

func TestLogin_Failures(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	expectRedirect(t, e.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {"secret123"}}), "/login")

	for _, creds := range []url.Values{
		{"username": {"alice"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"secret123"}},
	} {
		res := e.postForm(t, "/login", creds)
		body := readBody(t, res)
		if res.StatusCode != http.StatusOK || !strings.Contains(body, "Invalid username or password!") {
			t.Errorf("login %v = %d %q", creds, res.StatusCode, body)
		}
		if sessionCookie(e) != nil {
			t.Fatal("failed login issued a session")
		}
	}

	res := e.postForm(t, "/login", url.Values{"username": {"alice"}})
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("login without password status = %d, want 400", res.StatusCode)
	}
	res.Body.Close()
}

func TestLogout_RevokesSession(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	e.signUpAndIn(t, "alice", "secret123")
	expectRedirect(t, e.get(t, "/"), "/dashboard")

	stolen := sessionCookie(e)
	if stolen == nil {
		t.Fatal("no session cookie after login")
	}
	expectRedirect(t, e.get(t, "/logout"), "/")
	if sessionCookie(e) != nil {
		t.Fatal("session cookie survived logout")
	}
	if body := readBody(t, e.get(t, "/")); !strings.Contains(body, "You have been logged out.") {
		t.Fatalf("landing page misses the logout flash: %q", body)
	}

	req, _ := http.NewRequest(http.MethodGet, e.server.URL+"/get_recommendations", nil)
	req.AddCookie(&http.Cookie{Name: testTokenName, Value: stolen.Value})
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	expectJSONError(t, res, http.StatusUnauthorized, "Unauthorized")
}

func TestSessionOfDeletedUser(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	e.signUpAndIn(t, "alice", "secret123")

	if _, err := e.conn.ExecContext(context.Background(), `DELETE FROM users WHERE username=?`, "alice"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	expectJSONError(t, e.get(t, "/get_recommendations"), http.StatusUnauthorized, "User not found")
	if sessionCookie(e) != nil {
		t.Fatal("session of a deleted user was not cleared")
	}
	expectJSONError(t, e.get(t, "/get_recommendations"), http.StatusUnauthorized, "Unauthorized")
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	res := e.get(t, "/healthz")
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /healthz = %d", res.StatusCode)
	}
}

func TestStaticScript(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{})
	res := e.get(t, "/static/script.js")
	if body := readBody(t, res); res.StatusCode != http.StatusOK || !strings.Contains(body, "/ws/chat") {
		t.Fatalf("GET /static/script.js = %d", res.StatusCode)
	}
}

func TestChat_FallbackBroadcast(t *testing.T) {
	e := newTestEnv(t, &stubCompleter{outcome: chat.Failed(chat.ReasonRejected, nil)})
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/chat"

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.ClientCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := conns[0].WriteMessage(websocket.TextMessage, []byte(`{"type":"message","data":{"message":"hello"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var frame struct {
			Type string `json:"type"`
			Data struct {
				Message string `json:"message"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if frame.Type != "response" || frame.Data.Message != chat.FallbackMessage {
			t.Errorf("frame = %+v", frame)
		}
	}
}
