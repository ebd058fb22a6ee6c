package compiler

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/domain"
)

func malformed(element, format string, args ...any) error {
	return &domain.MalformedGraphError{Element: element, Reason: fmt.Sprintf(format, args...)}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func decodeXML(data []byte) (*StateNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, malformed("document", "no root <state> element")
		}
		if err != nil {
			return nil, malformed("document", "%v", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "state" {
				return nil, malformed(se.Name.Local, "root element must be <state>")
			}
			return readState(dec, se, "")
		}
	}
}

func readState(dec *xml.Decoder, start xml.StartElement, parent string) (*StateNode, error) {
	node := &StateNode{Name: attr(start, "name")}
	path := joinPath(parent, node.Name)
	if node.Name == "" {
		path = joinPath(parent, "<state>")
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(path, "%v", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return node, nil
		case xml.StartElement:
			switch t.Name.Local {
			case "state":
				child, err := readState(dec, t, path)
				if err != nil {
					return nil, err
				}
				node.States = append(node.States, *child)
			case "state-ref":
				node.States = append(node.States, StateNode{Ref: attr(t, "name")})
				if err := dec.Skip(); err != nil {
					return nil, malformed(path, "%v", err)
				}
			case "trigger":
				trigger, err := readTrigger(dec, t, path)
				if err != nil {
					return nil, err
				}
				node.Triggers = append(node.Triggers, *trigger)
			case "transition":
				transition, err := readTransition(dec, t, path)
				if err != nil {
					return nil, err
				}
				node.Transitions = append(node.Transitions, *transition)
			case "operation":
				node.Operations = append(node.Operations, OperationNode{Name: attr(t, "name")})
				if err := dec.Skip(); err != nil {
					return nil, malformed(path, "%v", err)
				}
			case "capability", "interface":
				name := attr(t, "name")
				if name == "" {
					name = attr(t, "class")
				}
				node.Capabilities = append(node.Capabilities, CapabilityNode{Name: name})
				if err := dec.Skip(); err != nil {
					return nil, malformed(path, "%v", err)
				}
			default:
				return nil, malformed(path, "unrecognized element <%s>", t.Name.Local)
			}
		}
	}
}

func readTrigger(dec *xml.Decoder, start xml.StartElement, path string) (*TriggerNode, error) {
	node := &TriggerNode{Event: attr(start, "event")}
	element := path + "/trigger[" + node.Event + "]"
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(element, "%v", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return node, nil
		case xml.StartElement:
			node.actions++
			switch t.Name.Local {
			case "transition":
				transition, err := readTransition(dec, t, element)
				if err != nil {
					return nil, err
				}
				node.Transition = transition
			case "operation":
				node.Operation = &OperationNode{Name: attr(t, "name")}
				if err := dec.Skip(); err != nil {
					return nil, malformed(element, "%v", err)
				}
			default:
				return nil, malformed(element, "unrecognized action <%s>", t.Name.Local)
			}
		}
	}
}

func readTransition(dec *xml.Decoder, start xml.StartElement, path string) (*TransitionNode, error) {
	node := &TransitionNode{Name: attr(start, "name"), Target: attr(start, "target")}
	element := path + "/transition[" + node.Name + "]"
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(element, "%v", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return node, nil
		case xml.StartElement:
			if t.Name.Local != "operation" {
				return nil, malformed(element, "unrecognized element <%s>", t.Name.Local)
			}
			if node.Operation != nil {
				return nil, malformed(element, "declares more than one operation")
			}
			node.Operation = &OperationNode{Name: attr(t, "name")}
			if err := dec.Skip(); err != nil {
				return nil, malformed(element, "%v", err)
			}
		}
	}
}

func encodeXML(w io.Writer, root *StateNode) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeState(enc, root); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func element(local string, attrs ...string) xml.StartElement {
	se := xml.StartElement{Name: xml.Name{Local: local}}
	for i := 0; i+1 < len(attrs); i += 2 {
		se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return se
}

func writeEmpty(enc *xml.Encoder, se xml.StartElement) error {
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	return enc.EncodeToken(se.End())
}

func writeState(enc *xml.Encoder, node *StateNode) error {
	start := element("state", "name", node.Name)
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for i := range node.Triggers {
		trigger := &node.Triggers[i]
		se := element("trigger", "event", trigger.Event)
		if err := enc.EncodeToken(se); err != nil {
			return err
		}
		var err error
		if trigger.Transition != nil {
			err = writeTransition(enc, trigger.Transition)
		} else if trigger.Operation != nil {
			err = writeEmpty(enc, element("operation", "name", trigger.Operation.Name))
		}
		if err != nil {
			return err
		}
		if err := enc.EncodeToken(se.End()); err != nil {
			return err
		}
	}
	for i := range node.Transitions {
		if err := writeTransition(enc, &node.Transitions[i]); err != nil {
			return err
		}
	}
	for _, op := range node.Operations {
		if err := writeEmpty(enc, element("operation", "name", op.Name)); err != nil {
			return err
		}
	}
	for _, c := range node.Capabilities {
		if err := writeEmpty(enc, element("capability", "name", c.Name)); err != nil {
			return err
		}
	}
	for i := range node.States {
		child := &node.States[i]
		var err error
		if child.Ref != "" {
			err = writeEmpty(enc, element("state-ref", "name", child.Ref))
		} else {
			err = writeState(enc, child)
		}
		if err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeTransition(enc *xml.Encoder, t *TransitionNode) error {
	se := element("transition", "name", t.Name, "target", t.Target)
	if t.Operation == nil {
		return writeEmpty(enc, se)
	}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	if err := writeEmpty(enc, element("operation", "name", t.Operation.Name)); err != nil {
		return err
	}
	return enc.EncodeToken(se.End())
}
