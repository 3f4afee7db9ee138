package p2p

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "p2p")
