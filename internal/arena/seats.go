package arena

// seats is the session state: who holds White and Black, and whether the
// game is live.
type seats struct {
	white  ConnID
	black  ConnID
	active bool
}

// assign seats id in the first free color. A connection already seated keeps
// its color; ok is false when both seats belong to others.
func (s *seats) assign(id ConnID) (Color, bool) {
	if c, ok := s.colorOf(id); ok {
		return c, true
	}
	switch {
	case s.white == "":
		s.white = id
		return White, true
	case s.black == "":
		s.black = id
		return Black, true
	default:
		return "", false
	}
}

// release frees whichever seat id holds.
func (s *seats) release(id ConnID) (Color, bool) {
	c, ok := s.colorOf(id)
	switch c {
	case White:
		s.white = ""
	case Black:
		s.black = ""
	}
	return c, ok
}

func (s *seats) colorOf(id ConnID) (Color, bool) {
	switch {
	case id == "":
		return "", false
	case s.white == id:
		return White, true
	case s.black == id:
		return Black, true
	default:
		return "", false
	}
}

func (s *seats) holder(c Color) ConnID {
	if c == White {
		return s.white
	}
	return s.black
}

func (s *seats) full() bool { return s.white != "" && s.black != "" }
