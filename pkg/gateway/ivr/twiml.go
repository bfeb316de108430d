package ivr

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

// TwiML verb structs. Verb order inside a response is significant, so
// Response carries an ordered slice rather than one field per verb.

type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []any
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Verbs   []any
}

// Number is a dial target. URL points at a whisper endpoint played to
// the answering party before the legs are bridged.
type Number struct {
	XMLName xml.Name `xml:"Number"`
	URL     string   `xml:"url,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// writeTwiML renders the response document with the XML header Twilio
// expects.
func writeTwiML(w http.ResponseWriter, resp *Response) error {
	body, err := xml.Marshal(resp)
	if err != nil {
		return fmt.Errorf("ivr: marshal twiml: %w", err)
	}
	w.Header().Set("Content-Type", "application/xml")
	if _, err := fmt.Fprintf(w, "%s%s", xml.Header, body); err != nil {
		return fmt.Errorf("ivr: write twiml: %w", err)
	}
	return nil
}
