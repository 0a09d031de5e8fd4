/*
Package lineparser recognizes actors, messages, notes and group openers in
description text, one line at a time.

Every execution strategy of the dispatcher shares the recognizers defined here:
the worker runs Parse, the cooperative tier drives a Scanner in chunks, and the
degraded tier calls ScanActors. Lines that match nothing are skipped silently.
*/
package lineparser
