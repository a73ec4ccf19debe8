package clusterserver

import "github.com/yndnr/eventlink-go/internal/core/domain"

// route is one physical link and the destinations it serves.
type route struct {
	link  *Link
	names []string
}

// Send delivers msg to name. See SendMulti.
func (m *Manager) Send(name string, msg *Message) bool {
	return m.SendMulti([]string{name}, msg)
}

// SendMulti delivers msg to every name, writing at most once per distinct
// link. Names without a direct link go through their next hop in the
// servers table; the local node name is delivered in process. It reports
// whether at least one name resolved. Unset ID, Origin and TTL fields of
// msg are filled in.
func (m *Manager) SendMulti(names []string, msg *Message) bool {
	if msg == nil || len(names) == 0 {
		return false
	}
	if msg.ID == "" {
		msg.ID = NewMessage("", nil).ID
	}
	if msg.Origin == "" {
		msg.Origin = m.cfg.NodeName
	}
	if msg.TTL <= 0 {
		msg.TTL = m.cfg.DefaultTTL
	}

	routes, local, missed := m.resolve(names, "")
	if missed > 0 {
		m.metrics.MessagesDropped.WithLabelValues("no_route").Add(float64(missed))
	}

	resolved := local
	if local {
		m.seen.Add(msg.ID, struct{}{})
		m.deliver(msg.withDestinations([]string{m.cfg.NodeName}))
	}
	for _, r := range routes {
		if m.send(r.link, &Frame{Type: FrameMessage, Message: msg.withDestinations(r.names)}) {
			resolved = true
		}
	}
	return resolved
}

// receive handles a message frame read from the link of from.
func (m *Manager) receive(from string, msg *Message) {
	if msg.ID == "" {
		m.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return
	}

	var rest []string
	forMe := false
	for _, d := range msg.Destinations {
		if d == m.cfg.NodeName {
			forMe = true
			continue
		}
		rest = append(rest, d)
	}

	if forMe {
		if seen, _ := m.seen.ContainsOrAdd(msg.ID, struct{}{}); seen {
			m.metrics.MessagesDropped.WithLabelValues("duplicate").Inc()
		} else {
			m.deliver(msg.withDestinations([]string{m.cfg.NodeName}))
		}
	}
	if len(rest) == 0 {
		return
	}
	if msg.TTL <= 1 {
		m.metrics.MessagesDropped.WithLabelValues("ttl_expired").Add(float64(len(rest)))
		m.logger.Debug("message ttl expired", "id", msg.ID, "origin", msg.Origin, "destinations", len(rest))
		return
	}

	fwd := *msg
	fwd.TTL--
	routes, _, missed := m.resolve(rest, from)
	if missed > 0 {
		m.metrics.MessagesDropped.WithLabelValues("no_route").Add(float64(missed))
	}
	for _, r := range routes {
		if m.send(r.link, &Frame{Type: FrameMessage, Message: fwd.withDestinations(r.names)}) {
			m.metrics.MessagesForwarded.Inc()
		}
	}
}

// resolve groups names by the open link that reaches them. A route back
// to from is treated as missing. local reports whether the node itself was
// named; missed counts names that resolved to nothing.
func (m *Manager) resolve(names []string, from string) (routes []*route, local bool, missed int) {
	unique := make([]string, 0, len(names))
	dup := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := dup[n]; ok || n == "" {
			continue
		}
		dup[n] = struct{}{}
		if n == m.cfg.NodeName {
			local = true
			continue
		}
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return nil, local, 0
	}

	// Next hops are looked up without holding m.mu.
	hops := make(map[string]string, len(unique))
	for _, n := range unique {
		hops[n] = n
		if m.IsConnected(n) || m.cfg.Routes == nil {
			continue
		}
		if hop, ok := m.cfg.Routes.GetNextHop(domain.TableServers, n); ok && hop != m.cfg.NodeName {
			hops[n] = hop
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byLink := make(map[*Link]*route)
	for _, n := range unique {
		hop := hops[n]
		l := m.links[hop]
		if l == nil || !l.IsOpen() || hop == from {
			missed++
			continue
		}
		r, ok := byLink[l]
		if !ok {
			r = &route{link: l}
			byLink[l] = r
			routes = append(routes, r)
		}
		r.names = append(r.names, n)
	}
	return routes, local, missed
}

func (m *Manager) deliver(msg *Message) {
	h := m.handler.Load()
	if h == nil || *h == nil {
		m.metrics.MessagesDropped.WithLabelValues("no_handler").Inc()
		return
	}
	m.metrics.MessagesDelivered.Inc()
	(*h)(msg)
}
