package contract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PathMatcher matches request paths against a contract path template such as
// "/hosts/{host_id}" and extracts the bound placeholder values.
type PathMatcher struct {
	template   string
	regex      *regexp.Regexp
	paramNames []string

	// specificity orders matchers: literal characters raise it, placeholders lower it
	specificity int
}

// NewPathMatcher compiles a path template.
//
// Returns an error if the template is empty or malformed (unclosed or empty
// braces, duplicate placeholder names).
func NewPathMatcher(template string) (*PathMatcher, error) {
	if template == "" {
		return nil, fmt.Errorf("path template cannot be empty")
	}

	var regexBuf strings.Builder
	regexBuf.WriteString("^")

	paramNames := []string{}
	specificity := 0

	i := 0
	for i < len(template) {
		if template[i] != '{' {
			c := template[i]
			if strings.ContainsRune(`\.+*?()|[]{}^$`, rune(c)) {
				regexBuf.WriteByte('\\')
			}
			regexBuf.WriteByte(c)
			i++
			if c != '/' {
				specificity++
			}
			continue
		}

		end := strings.Index(template[i:], "}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed path parameter at position %d in template %q", i, template)
		}
		name := template[i+1 : i+end]
		if name == "" {
			return nil, fmt.Errorf("empty path parameter at position %d in template %q", i, template)
		}
		for _, existing := range paramNames {
			if existing == name {
				return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, template)
			}
		}
		paramNames = append(paramNames, name)

		// A placeholder binds exactly one segment.
		regexBuf.WriteString("([^/]+)")
		i += end + 1
		specificity--
	}

	regexBuf.WriteString("$")

	regex, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to compile path pattern for template %q: %w", template, err)
	}

	return &PathMatcher{
		template:    template,
		regex:       regex,
		paramNames:  paramNames,
		specificity: specificity,
	}, nil
}

// Match reports whether path matches the template and returns the bindings.
// Bound values are returned exactly as they appear in the path; callers decide
// whether to unescape them.
func (pm *PathMatcher) Match(path string) (bool, map[string]string) {
	matches := pm.regex.FindStringSubmatch(path)
	if matches == nil || len(matches) != len(pm.paramNames)+1 {
		return false, nil
	}

	params := make(map[string]string, len(pm.paramNames))
	for i, name := range pm.paramNames {
		params[name] = matches[i+1]
	}
	return true, params
}

// Template returns the original path template.
func (pm *PathMatcher) Template() string {
	return pm.template
}

// ParamNames returns the placeholder names in order of appearance.
func (pm *PathMatcher) ParamNames() []string {
	return pm.paramNames
}

// pathRoute pairs a compiled template with the operation it routes to.
type pathRoute struct {
	matcher     *PathMatcher
	method      string
	operationID string
}

// PathMatcherSet finds the most specific route for a method and request path.
type PathMatcherSet struct {
	routes []pathRoute
}

// add registers a route. Call sortRoutes once all routes are added.
func (s *PathMatcherSet) add(pm *PathMatcher, method, operationID string) {
	s.routes = append(s.routes, pathRoute{matcher: pm, method: method, operationID: operationID})
}

// sortRoutes orders routes by specificity (highest first), then by template
// length (longest first), then alphabetically. For one template, routes with a
// method come before the method-less catch-all.
func (s *PathMatcherSet) sortRoutes() {
	sort.SliceStable(s.routes, func(i, j int) bool {
		a, b := s.routes[i].matcher, s.routes[j].matcher
		if a.specificity != b.specificity {
			return a.specificity > b.specificity
		}
		if len(a.template) != len(b.template) {
			return len(a.template) > len(b.template)
		}
		if a.template != b.template {
			return a.template < b.template
		}
		mi, mj := s.routes[i].method, s.routes[j].method
		if (mi == "") != (mj == "") {
			return mj == ""
		}
		return mi < mj
	})
}

// Match returns the operation routed for method and path along with the path
// bindings. Routes declared without a method match any method.
func (s *PathMatcherSet) Match(method, path string) (operationID string, params map[string]string, found bool) {
	method = strings.ToUpper(method)
	for _, r := range s.routes {
		if r.method != "" && r.method != method {
			continue
		}
		if ok, params := r.matcher.Match(path); ok {
			return r.operationID, params, true
		}
	}
	return "", nil, false
}

// Templates returns the routed templates in match order.
func (s *PathMatcherSet) Templates() []string {
	templates := make([]string, len(s.routes))
	for i, r := range s.routes {
		templates[i] = r.matcher.template
	}
	return templates
}
