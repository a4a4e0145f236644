package etcd

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ServiceDiscovery registers and resolves service addresses in etcd.
type ServiceDiscovery struct {
	cli *clientv3.Client
}

// NewServiceDiscovery connects to the given etcd endpoints.
func NewServiceDiscovery(endpoints []string) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &ServiceDiscovery{cli: cli}, nil
}

// Register puts the service address under a leased key and keeps the lease
// alive until the returned channel is closed.
func (s *ServiceDiscovery) Register(serviceName, addr string, ttl int64) (chan<- struct{}, error) {
	leaseResp, err := s.cli.Grant(context.Background(), ttl)
	if err != nil {
		return nil, err
	}

	_, err = s.cli.Put(context.Background(), "/"+serviceName+"/"+addr, addr, clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return nil, err
	}

	keepAliveCh, err := s.cli.KeepAlive(context.Background(), leaseResp.ID)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case _, ok := <-keepAliveCh:
				if !ok {
					// Lease expired or was revoked.
					s.revoke(serviceName, addr)
					return
				}
			}
		}
	}()

	return stop, nil
}

func (s *ServiceDiscovery) revoke(serviceName, addr string) {
	s.cli.Delete(context.Background(), "/"+serviceName+"/"+addr)
}

// Discover returns the registered addresses of a service.
func (s *ServiceDiscovery) Discover(serviceName string) ([]string, error) {
	resp, err := s.cli.Get(context.Background(), "/"+serviceName, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, ev := range resp.Kvs {
		addrs = append(addrs, string(ev.Value))
	}
	return addrs, nil
}

// Close closes the etcd client.
func (s *ServiceDiscovery) Close() error {
	return s.cli.Close()
}
