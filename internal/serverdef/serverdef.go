// Package serverdef decodes server definitions from YAML or JSON documents.
package serverdef

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/project"
)

const (
	keyName     = "name"
	keyHost     = "host"
	keyPort     = "port"
	keyScheme   = "scheme"
	keyServers  = "servers"
	keyLogin    = "login"
	keyPassword = "password"
	keyDomain   = "domain"
	keyRealm    = "realm"

	keyBasic     = "basic_authentication"
	keyNTLM      = "ntlm_authentication"
	keyNegotiate = "negotiate_authentication"
	// older project files spell it this way
	keyNegociate = "negociate_authentication"
)

var authKeys = []struct {
	key  string
	kind project.AuthKind
}{
	{keyBasic, project.AuthBasic},
	{keyNTLM, project.AuthNTLM},
	{keyNegotiate, project.AuthNegotiate},
	{keyNegociate, project.AuthNegotiate},
}

type ErrorKind int

const (
	MissingField ErrorKind = iota
	ConflictingAuthentication
	InvalidField
	DuplicateName
	InvalidDocument
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case ConflictingAuthentication:
		return "conflicting authentication"
	case InvalidField:
		return "invalid field"
	case DuplicateName:
		return "duplicate server name"
	default:
		return "invalid document"
	}
}

// ValidationError describes why a definition was rejected. Index is the
// position in a servers list, or -1 for a single definition.
type ValidationError struct {
	Kind   ErrorKind
	Field  string
	Keys   []string
	Index  int
	Server string
	Detail string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "servers[%d]", e.Index)
		if e.Server != "" {
			fmt.Fprintf(&b, " (%s)", e.Server)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	switch {
	case e.Kind == ConflictingAuthentication:
		fmt.Fprintf(&b, " %s", strings.Join(e.Keys, ", "))
	case e.Field != "":
		fmt.Fprintf(&b, " %s", e.Field)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func invalid(kind ErrorKind, field, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Index: -1, Detail: detail}
}

func wrap(ve *ValidationError) error {
	return errdef.Wrap(errdef.CodeValidation, ve, "server definition")
}

// Definition decodes a server inside larger YAML documents.
type Definition struct {
	project.Server
}

func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	srv, ve := decodeServer(value)
	if ve != nil {
		return wrap(ve)
	}
	d.Server = srv
	return nil
}

// Decode reads one server definition. JSON input is accepted as YAML.
func Decode(data []byte) (project.Server, error) {
	node, ve := parseDocument(data)
	if ve != nil {
		return project.Server{}, wrap(ve)
	}
	return DecodeNode(node)
}

func DecodeNode(node *yaml.Node) (project.Server, error) {
	srv, ve := decodeServer(node)
	if ve != nil {
		return project.Server{}, wrap(ve)
	}
	return srv, nil
}

// DecodeServers reads the "servers" list of a project document. It stops
// at the first invalid entry.
func DecodeServers(data []byte) ([]project.Server, error) {
	root, ve := parseDocument(data)
	if ve != nil {
		return nil, wrap(ve)
	}
	list := mappingValue(root, keyServers)
	if list == nil || isNull(list) {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, wrap(invalid(InvalidDocument, keyServers, "expected a list"))
	}

	out := make([]project.Server, 0, len(list.Content))
	seen := make(map[string]int, len(list.Content))
	for i, item := range list.Content {
		srv, ve := decodeServer(item)
		if ve != nil {
			ve.Index = i
			if name := mappingValue(item, keyName); name != nil {
				ve.Server = name.Value
			}
			return nil, wrap(ve)
		}
		if first, dup := seen[srv.Name]; dup {
			return nil, wrap(&ValidationError{
				Kind:   DuplicateName,
				Index:  i,
				Server: srv.Name,
				Detail: fmt.Sprintf("already defined by servers[%d]", first),
			})
		}
		seen[srv.Name] = i
		out = append(out, srv)
	}
	return out, nil
}

func parseDocument(data []byte) (*yaml.Node, *ValidationError) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(InvalidDocument, "", err.Error())
	}
	node := &doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, invalid(InvalidDocument, "", "empty document")
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, invalid(InvalidDocument, "", "expected a mapping")
	}
	return node, nil
}

func decodeServer(node *yaml.Node) (project.Server, *ValidationError) {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return project.Server{}, invalid(InvalidDocument, "", "expected a mapping")
	}

	name, ve := requiredScalar(node, keyName, keyName)
	if ve != nil {
		return project.Server{}, ve
	}
	host, ve := requiredScalar(node, keyHost, keyHost)
	if ve != nil {
		return project.Server{}, ve
	}

	auth, ve := decodeAuthentication(node)
	if ve != nil {
		return project.Server{}, ve
	}

	// an unknown scheme falls back to http without complaint
	scheme := project.SchemeHTTP
	if v := mappingValue(node, keyScheme); v != nil && v.Kind == yaml.ScalarNode {
		if parsed, ok := project.ParseScheme(v.Value); ok {
			scheme = parsed
		}
	}

	port := scheme.DefaultPort()
	if v := mappingValue(node, keyPort); v != nil && !isNull(v) {
		n, err := strconv.Atoi(strings.TrimSpace(v.Value))
		if v.Kind != yaml.ScalarNode || err != nil || n < 1 || n > 65535 {
			return project.Server{}, invalid(InvalidField, keyPort, fmt.Sprintf("%q is not a port number", v.Value))
		}
		port = n
	}

	return project.Server{
		Name:   name,
		Host:   host,
		Port:   port,
		Scheme: scheme,
		Auth:   auth,
	}, nil
}

// decodeAuthentication checks every authentication key before decoding the
// one that is present.
func decodeAuthentication(node *yaml.Node) (project.Authentication, *ValidationError) {
	var (
		present []string
		kind    project.AuthKind
		body    *yaml.Node
	)
	for _, ak := range authKeys {
		v := mappingValue(node, ak.key)
		if v == nil || isNull(v) {
			continue
		}
		present = append(present, ak.key)
		kind, body = ak.kind, v
	}
	switch len(present) {
	case 0:
		return project.Authentication{Kind: project.AuthNone}, nil
	case 1:
	default:
		return project.Authentication{}, &ValidationError{Kind: ConflictingAuthentication, Keys: present, Index: -1}
	}

	key := present[0]
	if body.Kind != yaml.MappingNode {
		return project.Authentication{}, invalid(InvalidField, key, "expected a mapping")
	}
	login, ve := requiredScalar(body, keyLogin, key+"."+keyLogin)
	if ve != nil {
		return project.Authentication{}, ve
	}
	password, ve := requiredScalar(body, keyPassword, key+"."+keyPassword)
	if ve != nil {
		return project.Authentication{}, ve
	}
	auth := project.Authentication{Kind: kind, Login: login, Password: password}
	switch kind {
	case project.AuthBasic:
		auth.Realm = optionalScalar(body, keyRealm)
	default:
		auth.Domain = optionalScalar(body, keyDomain)
	}
	return auth, nil
}

func requiredScalar(node *yaml.Node, key, field string) (string, *ValidationError) {
	v := mappingValue(node, key)
	if v == nil || isNull(v) {
		return "", invalid(MissingField, field, "")
	}
	if v.Kind != yaml.ScalarNode {
		return "", invalid(InvalidField, field, "expected a scalar")
	}
	value := strings.TrimSpace(v.Value)
	if value == "" {
		return "", invalid(MissingField, field, "")
	}
	return value, nil
}

func optionalScalar(node *yaml.Node, key string) string {
	v := mappingValue(node, key)
	if v == nil || v.Kind != yaml.ScalarNode || isNull(v) {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if strings.TrimSpace(node.Content[i].Value) == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
