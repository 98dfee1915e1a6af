// Package framework contains the low-level pieces of the harness that are shared by every
// other package and do not know anything about browsers, HTTP calls or load profiles.
//
// The general model is:
//
// 1. A scenario run is identified by a TestID path such as "story-page/desktop/open story".
// Filters select which scenarios run based on that path.
//
// 2. Progress is reported through a TestLogger as each scenario and step starts, fails,
// finishes or is skipped. The console implementation lives in the main package.
//
// 3. Each step gets its own CapturingLogger so that debug output can be attached to the
// step result and shown only when it is useful.
//
// 4. Failures are classified by the typed errors in errors.go, which the runner uses to
// decide between "fail", "error" and "timeout" outcomes and whether a retry is allowed.
package framework
