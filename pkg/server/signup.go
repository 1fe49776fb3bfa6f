package server

import (
	"net/http"

	"github.com/modeltrack/modeltrack/pkg/routes"
)

// signupPage is the minimal self-service account form. It posts to the
// user-creation endpoint, which is open by design so new users can
// bootstrap their own accounts.
const signupPage = `<!DOCTYPE html>
<html>
<head>
  <title>Sign Up</title>
  <style>
    body { font-family: sans-serif; margin: 4em auto; max-width: 24em; }
    label { display: block; margin-top: 1em; }
    input { width: 100%; padding: 0.4em; }
    button { margin-top: 1.5em; padding: 0.5em 2em; }
  </style>
</head>
<body>
  <h1>Create Account</h1>
  <form method="post" action="` + routes.CreateUser + `">
    <label>Username <input type="text" name="username" required></label>
    <label>Password <input type="password" name="password" required></label>
    <button type="submit">Sign Up</button>
  </form>
</body>
</html>
`

func (s *Server) signupPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(signupPage))
}
