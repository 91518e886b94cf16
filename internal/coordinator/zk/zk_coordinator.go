package zk

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	coordinator "loanguard/internal/coordinator/iface"
	"loanguard/internal/logger"

	"github.com/go-zookeeper/zk"
)

type zkCoordinator struct {
	conn     *zk.Conn
	lockRoot string
	logger   logger.Logger
}

// NewZKCoordinator creates a ZooKeeper backed locker. Lock nodes live under
// lockRoot.
func NewZKCoordinator(servers []string, sessionTimeout time.Duration, lockRoot string, log logger.Logger) (coordinator.Locker, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	log.Info("connected to zookeeper",
		logger.Any("servers", servers),
	)

	c := &zkCoordinator{
		conn:     conn,
		lockRoot: strings.TrimRight(lockRoot, "/"),
		logger:   log.With(logger.String("component", "zk_coordinator")),
	}
	if err := c.ensurePath(c.lockRoot); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *zkCoordinator) Lock(ctx context.Context, name string) (coordinator.UnlockFunc, error) {
	lockPath := c.lockRoot + "/" + name
	lock := zk.NewLock(c.conn, lockPath, zk.WorldACL(zk.PermAll))

	acquired := make(chan error, 1)
	go func() {
		acquired <- lock.Lock()
	}()

	select {
	case err := <-acquired:
		if err != nil {
			return nil, fmt.Errorf("failed to acquire zk lock %s: %w", lockPath, err)
		}
		c.logger.Debug("zk lock acquired", logger.String("path", lockPath))
		return func() error {
			if err := lock.Unlock(); err != nil {
				return fmt.Errorf("failed to release zk lock %s: %w", lockPath, err)
			}
			return nil
		}, nil
	case <-ctx.Done():
		// The pending acquire cannot be cancelled; release it once it lands.
		go func() {
			if err := <-acquired; err == nil {
				_ = lock.Unlock()
			}
		}()
		return nil, fmt.Errorf("failed to acquire zk lock %s: %w", lockPath, ctx.Err())
	}
}

func (c *zkCoordinator) Close() error {
	c.logger.Info("closing zookeeper connection")
	c.conn.Close()
	return nil
}

// ensurePath creates p and its parents if they don't exist
func (c *zkCoordinator) ensurePath(p string) error {
	if p == "" || p == "/" {
		return nil
	}

	exists, _, err := c.conn.Exists(p)
	if err != nil {
		return fmt.Errorf("failed to check path %s: %w", p, err)
	}
	if exists {
		return nil
	}

	if err := c.ensurePath(path.Dir(p)); err != nil {
		return err
	}

	_, err = c.conn.Create(p, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("failed to create path %s: %w", p, err)
	}

	c.logger.Info("created zk node", logger.String("path", p))
	return nil
}
