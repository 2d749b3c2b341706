package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/polyglot-native/handle"
	"github.com/wippyai/polyglot-native/nativeapi"
)

// session is one context driven through the boundary the way a native
// embedder would drive it.
type session struct {
	iso *nativeapi.Isolate
	th  *nativeapi.Thread
	ctx handle.Handle
}

func newSession(configPath string, permitted []string) (*session, error) {
	cfg := nativeapi.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = nativeapi.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	iso, err := nativeapi.NewIsolate(cfg)
	if err != nil {
		return nil, err
	}
	th, err := iso.AttachThread()
	if err != nil {
		iso.Close()
		return nil, err
	}
	s := &session{iso: iso, th: th}
	if nativeapi.CreateContext(th, permitted, &s.ctx) != nativeapi.StatusOK {
		err := s.lastError()
		s.close()
		return nil, fmt.Errorf("create context: %w", err)
	}
	return s, nil
}

func (s *session) close() {
	if !s.ctx.IsNull() {
		nativeapi.ContextClose(s.th, s.ctx, true)
	}
	s.th.Detach()
	s.iso.Close()
}

// languages lists the language ids of the session engine.
func (s *session) languages() ([]string, error) {
	nativeapi.OpenHandleScope(s.th)
	defer nativeapi.CloseHandleScope(s.th)

	var eng handle.Handle
	if nativeapi.ContextGetEngine(s.th, s.ctx, &eng) != nativeapi.StatusOK {
		return nil, s.lastError()
	}
	var n uint64
	if nativeapi.EngineGetLanguages(s.th, eng, nil, &n) != nativeapi.StatusOK {
		return nil, s.lastError()
	}
	langs := make([]handle.Handle, n)
	if nativeapi.EngineGetLanguages(s.th, eng, langs, &n) != nativeapi.StatusOK {
		return nil, s.lastError()
	}
	ids := make([]string, 0, n)
	for _, l := range langs {
		id, err := s.text(func(buf []byte, size *uint64) nativeapi.Status {
			return nativeapi.LanguageGetID(s.th, l, buf, size)
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// eval runs source and renders the result as the guest would print it.
func (s *session) eval(lang, name, source string) (string, error) {
	nativeapi.OpenHandleScope(s.th)
	defer nativeapi.CloseHandleScope(s.th)

	var v handle.Handle
	if nativeapi.ContextEval(s.th, s.ctx, lang, name, source, &v) != nativeapi.StatusOK {
		return "", s.lastError()
	}
	return s.text(func(buf []byte, size *uint64) nativeapi.Status {
		return nativeapi.ValueToStringUTF8(s.th, v, buf, size)
	})
}

// text reads a string with the two-pass convention.
func (s *session) text(read func(buf []byte, size *uint64) nativeapi.Status) (string, error) {
	var size uint64
	if read(nil, &size) != nativeapi.StatusOK {
		return "", s.lastError()
	}
	buf := make([]byte, size)
	if read(buf, &size) != nativeapi.StatusOK {
		return "", s.lastError()
	}
	return string(buf[:size]), nil
}

// guestError is a guest exception rendered with its stack trace.
type guestError struct {
	message string
	trace   string
	syntax  bool
}

func (e *guestError) Error() string {
	var b strings.Builder
	if e.syntax {
		b.WriteString("syntax error: ")
	}
	b.WriteString(e.message)
	if e.trace != "" {
		b.WriteByte('\n')
		b.WriteString(strings.TrimRight(e.trace, "\n"))
	}
	return b.String()
}

// lastError turns the failure of the previous call into an error.
func (s *session) lastError() error {
	status := s.th.LastStatus()

	var info *nativeapi.ErrorInfo
	nativeapi.GetLastErrorInfo(s.th, &info)
	msg := status.String()
	if info != nil {
		msg = info.Message()
	}

	if status != nativeapi.StatusPendingException {
		return fmt.Errorf("%s: %s", status, firstLine(msg))
	}

	var ex handle.Handle
	if nativeapi.GetLastException(s.th, &ex) != nativeapi.StatusOK || ex.IsNull() {
		return fmt.Errorf("%s: %s", status, firstLine(msg))
	}
	ge := &guestError{}
	ge.message, _ = s.text(func(buf []byte, size *uint64) nativeapi.Status {
		return nativeapi.ExceptionGetMessage(s.th, ex, buf, size)
	})
	ge.trace, _ = s.text(func(buf []byte, size *uint64) nativeapi.Status {
		return nativeapi.ExceptionGetGuestStackTrace(s.th, ex, buf, size)
	})
	nativeapi.ExceptionIsSyntaxError(s.th, ex, &ge.syntax)
	return ge
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
