// Command corofiberd is a demonstration server built on corofiber: it
// listens on two ports, one forwarding HTTP GET requests to a second
// server on localhost:80 (a throughput benchmark harness), the other
// replying to every connection with a fixed greeting. Grounded on
// original_source/main.c's forward_proc/greeting_proc/signal_handler.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/corofiber"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const bufferSize = 8192

var greeting = []byte("HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 25\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nWelcome to the corofiber!")

func forwardProc(f *corofiber.Fiber, param any) any {
	fd := param.(int)
	defer corofiber.Close(f, fd)

	buf := make([]byte, bufferSize)
	n, err := corofiber.Read(f, fd, buf)
	if n <= 0 || err != nil {
		return err
	}

	sockfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	defer corofiber.Close(f, sockfd)

	if err := corofiber.Connect(f, sockfd, &unix.SockaddrInet4{Port: 80, Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		return err
	}
	if _, err := corofiber.Write(f, sockfd, buf[:n]); err != nil {
		return err
	}

	for {
		n, err := corofiber.Read(f, sockfd, buf)
		if n <= 0 || err != nil {
			break
		}
		written := 0
		for written < n {
			w, err := corofiber.Write(f, fd, buf[written:n])
			if err != nil {
				return err
			}
			written += w
		}
	}
	return nil
}

func greetingProc(f *corofiber.Fiber, param any) any {
	fd := param.(int)
	defer corofiber.Close(f, fd)

	buf := make([]byte, bufferSize)
	n, err := corofiber.Read(f, fd, buf)
	if n <= 0 || err != nil {
		return err
	}

	written := 0
	for written < len(greeting) {
		w, err := corofiber.Write(f, fd, greeting[written:])
		if err != nil {
			return err
		}
		written += w
	}
	return nil
}

func listenFD(port int) (int, error) {
	sockfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(sockfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(sockfd)
		return -1, err
	}
	if err := unix.Bind(sockfd, &unix.SockaddrInet4{Port: port}); err != nil {
		_ = unix.Close(sockfd)
		return -1, err
	}
	if err := unix.Listen(sockfd, 512); err != nil {
		_ = unix.Close(sockfd)
		return -1, err
	}
	return sockfd, nil
}

func main() {
	forwardPort := flag.Int("forward-port", 8080, "port forwarding HTTP GET requests to localhost:80")
	greetingPort := flag.Int("greeting-port", 8081, "port serving a fixed greeting response")
	flag.Parse()

	logger := corofiber.NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())

	rt, err := corofiber.RuntimeInit(64*1024, 256, 512, time.Minute, 16,
		corofiber.WithLogger(logger),
		corofiber.WithMetrics(true),
	)
	if err != nil {
		log.Fatalf("corofiberd: init: %v", err)
	}
	defer rt.Close()

	forwardFD, err := listenFD(*forwardPort)
	if err != nil {
		log.Fatalf("corofiberd: listen forward port: %v", err)
	}
	if err := rt.AddListen(forwardFD, forwardProc); err != nil {
		log.Fatalf("corofiberd: add forward listener: %v", err)
	}

	greetingFD, err := listenFD(*greetingPort)
	if err != nil {
		log.Fatalf("corofiberd: listen greeting port: %v", err)
	}
	if err := rt.AddListen(greetingFD, greetingProc); err != nil {
		log.Fatalf("corofiberd: add greeting listener: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		rt.Stop()
	}()

	if err := rt.Run(); err != nil {
		log.Fatalf("corofiberd: run: %v", err)
	}
}
