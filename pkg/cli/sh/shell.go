// Package sh provides the interactive lunix shell.
package sh

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/abiosoft/ishell"
)

// Shell provides an ishell backed console against a lunixd consumer
// endpoint.
type Shell struct {
	Interactive bool
	Addr        string

	Shell *ishell.Shell
}

const shellKey = "$shell"

var (
	// flags

	endpointAddr = "localhost:7667"
	evalOnly     bool

	// commands
	commands = []*ishell.Cmd{
		&InfoCmd,
		&GetCmd,
		&WatchCmd,
	}
)

// SetupFlags registers shell flags, called from main's init.
func SetupFlags() {
	if val := os.Getenv("LUNIX_ADDR"); val != "" {
		endpointAddr = val
	}
	flag.StringVar(&endpointAddr, "addr", endpointAddr, "lunixd consumer endpoint address.")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// New creates a new shell.
func New(addr string) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Addr:        addr,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", addr))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Dial opens a connection to the endpoint and issues command.
func (s *Shell) Dial(command string) (net.Conn, *bufio.Reader, error) {
	conn, err := net.Dial("tcp", s.Addr)
	if err != nil {
		return nil, nil, err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, bufio.NewReader(conn), nil
}

// ReadValue issues command and reads a single reply line.
func (s *Shell) ReadValue(command string) (string, error) {
	conn, br, err := s.Dial(command)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	if strings.HasPrefix(line, "error:") {
		return "", fmt.Errorf("%s", strings.TrimSpace(strings.TrimPrefix(line, "error:")))
	}
	return line, nil
}

// Run runs the shell, either interactively or evaluating args.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Println("lunix console, type 'help' for commands")
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is the entry of lunixcli.
func Main() {
	flag.Parse()
	log.SetFlags(0)
	New(endpointAddr).Run(flag.Args()...)
}

// InfoCmd prints the station description.
var InfoCmd = ishell.Cmd{
	Name: "info",
	Help: "show station information",
	Func: func(c *ishell.Context) {
		line, err := ShellFrom(c).ReadValue("info")
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(line)
	},
}

// GetCmd reads one value of one sensor measurement.
var GetCmd = ishell.Cmd{
	Name: "get",
	Help: "get <sensor> <kind>: read the next value",
	Func: func(c *ishell.Context) {
		if len(c.Args) != 2 {
			c.Err(fmt.Errorf("usage: get <sensor> <kind>"))
			return
		}
		line, err := ShellFrom(c).ReadValue(fmt.Sprintf("open %s %s", c.Args[0], c.Args[1]))
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(line)
	},
}

// WatchCmd follows a sensor measurement until interrupted.
var WatchCmd = ishell.Cmd{
	Name: "watch",
	Help: "watch <sensor> <kind>: follow values until ctrl-c",
	Func: func(c *ishell.Context) {
		if len(c.Args) != 2 {
			c.Err(fmt.Errorf("usage: watch <sensor> <kind>"))
			return
		}
		s := ShellFrom(c)
		conn, br, err := s.Dial(fmt.Sprintf("open %s %s", c.Args[0], c.Args[1]))
		if err != nil {
			c.Err(err)
			return
		}
		defer conn.Close()

		for {
			line, err := br.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					c.Err(err)
				}
				return
			}
			c.Printf("%s", line)
		}
	},
}
