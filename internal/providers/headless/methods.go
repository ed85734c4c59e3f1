package headless

import (
	"context"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

var editCommands = map[string]bool{
	"undo":               true,
	"redo":               true,
	"cut":                true,
	"copy":               true,
	"paste":              true,
	"pasteAndMatchStyle": true,
	"delete":             true,
	"selectAll":          true,
	"unselect":           true,
	"replace":            true,
	"replaceMisspelling": true,
}

// Call invokes a page method by name.
func (s *Surface) Call(ctx context.Context, method string, args []any) (any, error) {
	if s.IsDestroyed() {
		return nil, surface.ErrDestroyed
	}
	if editCommands[method] {
		s.mu.Lock()
		s.edits = append(s.edits, method)
		s.mu.Unlock()
		return nil, nil
	}

	switch method {
	// Navigation
	case "loadURL":
		target, err := stringArg(args, 0, "url")
		if err != nil {
			return nil, err
		}
		return nil, s.LoadURL(ctx, target, loadOptionsArg(args, 1))
	case "getURL":
		return s.URL(), nil
	case "getTitle":
		return s.Title(), nil
	case "isLoading", "isLoadingMainFrame", "isWaitingForResponse":
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.loading, nil
	case "stop":
		s.stop()
		return nil, nil
	case "reload", "reloadIgnoringCache":
		s.mu.Lock()
		current, index := s.url, s.index
		s.mu.Unlock()
		if current != "" {
			s.navigateAsync(current, index)
		}
		return nil, nil

	// History
	case "canGoBack":
		return s.canGoToOffset(-1), nil
	case "canGoForward":
		return s.canGoToOffset(1), nil
	case "canGoToOffset":
		offset, err := intArg(args, 0, "offset")
		if err != nil {
			return nil, err
		}
		return s.canGoToOffset(offset), nil
	case "clearHistory":
		s.mu.Lock()
		if s.index >= 0 {
			s.history = []string{s.history[s.index]}
			s.index = 0
		}
		s.mu.Unlock()
		return nil, nil
	case "goBack":
		return nil, s.goToOffset(-1)
	case "goForward":
		return nil, s.goToOffset(1)
	case "goToOffset":
		offset, err := intArg(args, 0, "offset")
		if err != nil {
			return nil, err
		}
		return nil, s.goToOffset(offset)
	case "goToIndex":
		index, err := intArg(args, 0, "index")
		if err != nil {
			return nil, err
		}
		return nil, s.goToIndex(index)

	// Page state
	case "isCrashed":
		return false, nil
	case "setUserAgent":
		ua, err := stringArg(args, 0, "userAgent")
		if err != nil {
			return nil, err
		}
		return nil, s.SetProperty("userAgent", ua)
	case "getUserAgent":
		return s.Property("userAgent")
	case "setAudioMuted":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: muted is required", surface.ErrInvalidArgument)
		}
		return nil, s.SetProperty("audioMuted", args[0])
	case "isAudioMuted":
		return s.Property("audioMuted")
	case "isCurrentlyAudible":
		return false, nil
	case "getZoomFactor":
		return s.Property("zoomFactor")
	case "getZoomLevel":
		return s.Property("zoomLevel")
	case "setZoomFactor":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: factor is required", surface.ErrInvalidArgument)
		}
		return nil, s.SetProperty("zoomFactor", args[0])
	case "setZoomLevel":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: level is required", surface.ErrInvalidArgument)
		}
		return nil, s.SetProperty("zoomLevel", args[0])
	case "setLayoutZoomLevelLimits", "setVisualZoomLevelLimits":
		return nil, s.setZoomLimits(method, args)

	// Developer tools
	case "openDevTools", "inspectElement", "inspectSharedWorker", "inspectServiceWorker":
		s.setDevTools(true)
		return nil, nil
	case "closeDevTools":
		s.setDevTools(false)
		return nil, nil
	case "isDevToolsOpened", "isDevToolsFocused":
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.devTools, nil

	// Content
	case "executeJavaScript":
		code, err := stringArg(args, 0, "code")
		if err != nil {
			return nil, err
		}
		return s.executeJavaScript(ctx, code)
	case "insertCSS":
		css, err := stringArg(args, 0, "css")
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cssSeq++
		key := fmt.Sprintf("css-%d", s.cssSeq)
		s.css[key] = css
		s.mu.Unlock()
		return key, nil
	case "removeInsertedCSS":
		key, err := stringArg(args, 0, "key")
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		delete(s.css, key)
		s.mu.Unlock()
		return nil, nil
	case "insertText":
		text, err := stringArg(args, 0, "text")
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.typed = append(s.typed, text)
		s.mu.Unlock()
		return nil, nil
	case "send":
		channel, err := stringArg(args, 0, "channel")
		if err != nil {
			return nil, err
		}
		return nil, s.Send(channel, args[1:]...)
	case "sendInputEvent":
		if len(args) == 0 {
			return nil, fmt.Errorf("%w: event is required", surface.ErrInvalidArgument)
		}
		s.mu.Lock()
		s.inputEvents = append(s.inputEvents, args[0])
		s.mu.Unlock()
		return nil, nil
	case "findInPage":
		text, err := stringArg(args, 0, "text")
		if err != nil {
			return nil, err
		}
		return s.findInPage(text), nil
	case "stopFindInPage":
		return nil, nil
	}

	return nil, fmt.Errorf("%w: method %q", surface.ErrUnsupported, method)
}

func (s *Surface) canGoToOffset(offset int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.index + offset
	return s.index >= 0 && target >= 0 && target < len(s.history)
}

func (s *Surface) goToOffset(offset int) error {
	s.mu.Lock()
	index := s.index + offset
	s.mu.Unlock()
	return s.goToIndex(index)
}

func (s *Surface) goToIndex(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.history) {
		s.mu.Unlock()
		return fmt.Errorf("%w: history index %d out of range", surface.ErrInvalidArgument, index)
	}
	target := s.history[index]
	s.mu.Unlock()

	s.navigateAsync(target, index)
	return nil
}

func (s *Surface) setZoomLimits(method string, args []any) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: minimum and maximum levels are required", surface.ErrInvalidArgument)
	}
	lo, okLo := toFloat(args[0])
	hi, okHi := toFloat(args[1])
	if !okLo || !okHi || lo > hi {
		return fmt.Errorf("%w: invalid zoom limits", surface.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if method == "setLayoutZoomLevelLimits" {
		s.layoutZoom = [2]float64{lo, hi}
	} else {
		s.visualZoom = [2]float64{lo, hi}
	}
	return nil
}

func (s *Surface) setDevTools(open bool) {
	s.mu.Lock()
	changed := s.devTools != open
	s.devTools = open
	s.mu.Unlock()

	if !changed {
		return
	}
	if open {
		s.Emit(EventDevToolsOpened)
	} else {
		s.Emit(EventDevToolsClosed)
	}
}

func (s *Surface) executeJavaScript(ctx context.Context, code string) (any, error) {
	if enabled, _ := s.Preferences().Bool(surface.PrefJavaScript); !enabled {
		return nil, fmt.Errorf("%w: javascript is disabled", surface.ErrUnsupported)
	}

	s.mu.Lock()
	doc := Document{URL: s.url, Title: s.title, Text: s.text, HTML: s.html}
	s.mu.Unlock()

	result, err := s.runtime.Execute(ctx, code, doc)
	if result != nil {
		for _, entry := range result.Console {
			s.Emit(EventConsoleMessage, entry.Level, entry.Message, 0, doc.URL)
		}
		if result.Title != doc.Title {
			s.mu.Lock()
			s.title = result.Title
			s.mu.Unlock()
			s.Emit(EventPageTitleUpdated, result.Title, true)
		}
		for _, msg := range result.Host {
			s.PostToHost(msg.Channel, msg.Args...)
		}
		for _, focus := range result.Focus {
			s.ReportFocus(focus)
		}
	}
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

func (s *Surface) findInPage(text string) int {
	s.mu.Lock()
	s.findSeq++
	requestID := s.findSeq
	matches := 0
	if text != "" {
		matches = strings.Count(strings.ToLower(s.text), strings.ToLower(text))
	}
	s.mu.Unlock()

	active := 0
	if matches > 0 {
		active = 1
	}
	s.Emit(EventFoundInPage, map[string]any{
		"requestId":          requestID,
		"activeMatchOrdinal": active,
		"matches":            matches,
		"finalUpdate":        true,
	})
	return requestID
}

func stringArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: %s is required", surface.ErrInvalidArgument, name)
	}
	v, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", surface.ErrInvalidArgument, name)
	}
	return v, nil
}

func intArg(args []any, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: %s is required", surface.ErrInvalidArgument, name)
	}
	v, ok := toFloat(args[i])
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", surface.ErrInvalidArgument, name)
	}
	return int(v), nil
}

// loadOptionsArg reads {httpReferrer, userAgent} from an optional argument.
func loadOptionsArg(args []any, i int) surface.LoadOptions {
	var opts surface.LoadOptions
	if i >= len(args) {
		return opts
	}
	obj, ok := args[i].(map[string]any)
	if !ok {
		return opts
	}
	if v, ok := obj["httpReferrer"].(string); ok {
		opts.HTTPReferrer = v
	}
	if v, ok := obj["userAgent"].(string); ok {
		opts.UserAgent = v
	}
	return opts
}
