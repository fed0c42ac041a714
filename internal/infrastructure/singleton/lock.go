// Package singleton 守护进程的单实例保证：用监听端口本身作为进程锁
package singleton

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

// healthCheckTimeout 对已占用端口做健康探测的超时
const healthCheckTimeout = 2 * time.Second

// CheckAndLock 尝试占用端口作为单实例锁
// 端口可用时返回临时 listener（调用方关闭后交给 HTTP 服务器监听）；
// 端口被健康实例占用时返回 (nil, nil)，调用方应直接退出；
// 端口被占用但健康检查失败时返回错误
func CheckAndLock(port string) (net.Listener, error) {
	listener, err := net.Listen("tcp", port)
	if err == nil {
		return listener, nil
	}

	if isAddrInUse(err) {
		if isInstanceRunning(port) {
			return nil, nil
		}
		return nil, fmt.Errorf("port %s is taken but health check failed", port)
	}
	return nil, fmt.Errorf("listen %s: %w", port, err)
}

// isAddrInUse 判断错误是否为地址已占用
func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}

	opErr, ok := err.(*net.OpError)
	if !ok {
		return false
	}
	sysErr, ok := opErr.Err.(*os.SyscallError)
	if !ok {
		return false
	}
	if errno, ok := sysErr.Err.(syscall.Errno); ok {
		// 10048 是 Windows 的 WSAEADDRINUSE
		return errno == syscall.EADDRINUSE || errno == 10048
	}
	return false
}

// isInstanceRunning 对占用端口的进程做健康探测
func isInstanceRunning(port string) bool {
	client := &http.Client{Timeout: healthCheckTimeout}

	resp, err := client.Get(fmt.Sprintf("http://localhost%s/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
