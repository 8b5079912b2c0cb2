package protocol

// Command is a protocol token.
type Command string

// Tokens exchanged on the wire.
const (
	FindRepo    Command = "FindRepo"
	GetAllRepos Command = "GetAllRepos"
	RemoveRepo  Command = "RemoveRepo"
	Ready       Command = "Ready"
	Success     Command = "Success"
	Error       Command = "Error"
)

var commands = map[string]Command{
	string(FindRepo):    FindRepo,
	string(GetAllRepos): GetAllRepos,
	string(RemoveRepo):  RemoveRepo,
	string(Ready):       Ready,
	string(Success):     Success,
	string(Error):       Error,
}

// ParseCommand returns the command named by s.
func ParseCommand(s string) (Command, bool) {
	c, ok := commands[s]
	return c, ok
}

// IsRequest reports whether c may be sent by a client.
func (c Command) IsRequest() bool {
	switch c {
	case FindRepo, GetAllRepos, RemoveRepo:
		return true
	}
	return false
}

func (c Command) String() string {
	return string(c)
}
