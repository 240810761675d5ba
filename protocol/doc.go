// Package protocol defines the typed commands exchanged between the layout
// host and a trackside peripheral, and the text codec that maps them onto
// wire frames.
//
// Every frame is a short UTF-8 string without the trailing '|' delimiter
// (framing belongs to package link). The grammar is:
//
//	IN:<gpio>                                      sensor registration request
//	IN:<gpio>:<0|1>                                sensor level report
//	OUT_TO:<servo>[<thrown>][<closed>]:<0|1>       turnout command, 1=closed
//	OUT_SH:<id>$<boardHex>$R<red>$G<green>:<code>  signal head command
//
// where <code> is one of r, g, fr, fg, d (red, green, flashing red,
// flashing green, dark).
//
// Parsing fails closed: any frame that does not match the grammar exactly
// yields a *ParseError carrying the raw text, which the receiver reports
// back to the sender as a diagnostic frame.
package protocol
