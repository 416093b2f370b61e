// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package grpctest provides a test suite running a local gRPC server.
package grpctest

import (
	"net"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
)

// GRPCSuite is a test suite which serves a gRPC server on a random local port.
//
// Call InitServer, register the services on Server, then call StartServer.
type GRPCSuite struct {
	suite.Suite

	Server *grpc.Server
	Target string

	listener net.Listener
	serveErr chan error
}

// InitServer creates the gRPC server and its listener.
func (suite *GRPCSuite) InitServer(opts ...grpc.ServerOption) {
	var err error

	suite.listener, err = net.Listen("tcp", "127.0.0.1:0")
	suite.Require().NoError(err)

	suite.Target = suite.listener.Addr().String()
	suite.Server = grpc.NewServer(opts...)
}

// StartServer starts serving in the background.
func (suite *GRPCSuite) StartServer() {
	suite.serveErr = make(chan error, 1)

	go func() {
		suite.serveErr <- suite.Server.Serve(suite.listener)
	}()
}

// StopServer stops the server and waits for it to exit.
func (suite *GRPCSuite) StopServer() {
	suite.Server.Stop()

	suite.Require().NoError(<-suite.serveErr)
}
