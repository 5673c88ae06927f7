package ipc_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/fdooze"
	. "github.com/thediveo/success"

	"github.com/piri-wm/piri/internal/ipc"
	"github.com/piri-wm/piri/internal/ipcproto"
)

type stubDispatcher struct {
	resp ipcproto.Response
	err  error
	got  ipcproto.Request
}

func (s *stubDispatcher) HandleIPC(ctx context.Context, req ipcproto.Request) (ipcproto.Response, error) {
	s.got = req
	return s.resp, s.err
}

var _ = Describe("ipc server", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		DeferCleanup(func() {
			Expect(Filedescriptors()).NotTo(HaveLeakedFds(goodfds))
		})
	})

	It("round trips a ping request", func() {
		dir := GinkgoT().TempDir()
		sockPath := filepath.Join(dir, "piri-ipc.sock")

		dispatcher := &stubDispatcher{}
		srv := ipc.New(sockPath, dispatcher, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx) }()

		Eventually(func() error {
			_, err := ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.Ping})
			return err
		}).Should(Succeed())

		resp := Successful(ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.Ping}))
		Expect(resp.IsOK()).To(BeTrue())

		cancel()
		Eventually(done).Should(Receive())
	})

	It("closes the shutdown channel exactly once", func() {
		dir := GinkgoT().TempDir()
		sockPath := filepath.Join(dir, "piri-ipc.sock")

		dispatcher := &stubDispatcher{}
		srv := ipc.New(sockPath, dispatcher, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go srv.Serve(ctx)

		Eventually(func() error {
			_, err := ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.Ping})
			return err
		}).Should(Succeed())

		_, err := ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.Shutdown})
		Expect(err).NotTo(HaveOccurred())

		select {
		case <-srv.Shutdown():
		case <-time.After(time.Second):
			Fail("shutdown channel never closed")
		}
	})

	It("delegates unknown request kinds to the dispatcher", func() {
		dir := GinkgoT().TempDir()
		sockPath := filepath.Join(dir, "piri-ipc.sock")

		dispatcher := &stubDispatcher{resp: ipcproto.Success()}
		srv := ipc.New(sockPath, dispatcher, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go srv.Serve(ctx)

		Eventually(func() error {
			_, err := ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.ScratchpadToggle, Name: "term"})
			return err
		}).Should(Succeed())

		resp := Successful(ipc.Send(sockPath, ipcproto.Request{Kind: ipcproto.ScratchpadToggle, Name: "term"}))
		Expect(resp.IsOK()).To(BeTrue())
		Expect(dispatcher.got.Name).To(Equal("term"))
	})

})
